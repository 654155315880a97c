package domain_test

import (
	"testing"
	"time"

	"quiz-room-service/internal/domain"
)

func TestLeaderboardOrdering(t *testing.T) {
	t20 := 20
	t10 := 10
	participants := []domain.Participant{
		{ID: "p1", Name: "Alice", Score: 50, TimeUsedSeconds: &t20},
		{ID: "p2", Name: "Bob", Score: 50, TimeUsedSeconds: &t10},
		{ID: "p3", Name: "Carol", Score: 30, TimeUsedSeconds: nil},
	}

	lb := domain.BuildLeaderboard("room-1", participants, time.Now())

	if len(lb.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(lb.Entries))
	}
	want := []string{"p2", "p1", "p3"}
	for i, id := range want {
		if lb.Entries[i].ParticipantID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, lb.Entries[i].ParticipantID)
		}
	}
}

func TestNeverFinishedSortsLast(t *testing.T) {
	t5 := 5
	participants := []domain.Participant{
		{ID: "p1", Name: "Alice", Score: 10, TimeUsedSeconds: nil},
		{ID: "p2", Name: "Bob", Score: 10, TimeUsedSeconds: &t5},
	}

	domain.SortParticipants(participants)

	if participants[0].ID != "p2" {
		t.Fatalf("expected finished participant first, got %s", participants[0].ID)
	}
}

func TestQuestionByID(t *testing.T) {
	quiz := domain.QuizData{
		Questions: []domain.Question{
			{ID: "q1"},
			{ID: "q2"},
		},
	}

	if _, ok := quiz.QuestionByID("q2"); !ok {
		t.Fatalf("expected q2 to be found")
	}
	if _, ok := quiz.QuestionByID("q9"); ok {
		t.Fatalf("expected q9 to be missing")
	}
}
