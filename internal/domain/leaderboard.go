package domain

import (
	"math"
	"sort"
	"time"
)

// LeaderboardEntry is a snapshot-friendly view of one participant.
type LeaderboardEntry struct {
	ParticipantID   string `json:"participantId"`
	Name            string `json:"name"`
	Score           int    `json:"score"`
	TimeUsedSeconds *int   `json:"timeUsedSeconds"`
}

// Leaderboard captures the ordered scoreboard for a room.
type Leaderboard struct {
	RoomID    string             `json:"roomId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// SortParticipants orders by score descending, ties broken by ascending time
// used. Participants who never finished sort last.
func SortParticipants(participants []Participant) {
	sort.SliceStable(participants, func(i, j int) bool {
		if participants[i].Score != participants[j].Score {
			return participants[i].Score > participants[j].Score
		}
		ti := timeUsedOrMax(participants[i])
		tj := timeUsedOrMax(participants[j])
		if ti != tj {
			return ti < tj
		}
		return participants[i].Name < participants[j].Name
	})
}

// BuildLeaderboard sorts the given participants and converts them into a
// leaderboard snapshot.
func BuildLeaderboard(roomID string, participants []Participant, now time.Time) Leaderboard {
	SortParticipants(participants)
	entries := make([]LeaderboardEntry, 0, len(participants))
	for _, p := range participants {
		entries = append(entries, LeaderboardEntry{
			ParticipantID:   p.ID,
			Name:            p.Name,
			Score:           p.Score,
			TimeUsedSeconds: p.TimeUsedSeconds,
		})
	}
	return Leaderboard{RoomID: roomID, Entries: entries, UpdatedAt: now}
}

func timeUsedOrMax(p Participant) int {
	if p.TimeUsedSeconds == nil {
		return math.MaxInt32
	}
	return *p.TimeUsedSeconds
}
