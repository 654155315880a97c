package memory

import (
	"context"
	"sync"

	"quiz-room-service/internal/domain"
)

// RoomStore is an in-memory implementation of app.RoomStore with in-process
// change fan-out. Used for tests and dependency-free runs.
type RoomStore struct {
	mu           sync.RWMutex
	rooms        map[string]domain.Room
	participants map[string]map[string]domain.Participant

	roomWatchers         map[string]map[chan domain.Room]struct{}
	participantsWatchers map[string]map[chan []domain.Participant]struct{}
	participantWatchers  map[string]map[chan domain.Participant]struct{}
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms:                make(map[string]domain.Room),
		participants:         make(map[string]map[string]domain.Participant),
		roomWatchers:         make(map[string]map[chan domain.Room]struct{}),
		participantsWatchers: make(map[string]map[chan []domain.Participant]struct{}),
		participantWatchers:  make(map[string]map[chan domain.Participant]struct{}),
	}
}

func (s *RoomStore) CreateRoom(_ context.Context, room domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = room
	s.participants[room.ID] = make(map[string]domain.Participant)
	s.broadcastRoomLocked(room.ID)
	return nil
}

func (s *RoomStore) GetRoom(_ context.Context, roomID string) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return room, nil
}

func (s *RoomStore) FindRoomByCode(_ context.Context, code string) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, room := range s.rooms {
		if room.Code == code {
			return room, nil
		}
	}
	return domain.Room{}, domain.ErrRoomNotFound
}

func (s *RoomStore) UpdateQuiz(_ context.Context, roomID string, patch domain.QuizPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	patch.Apply(&room.Quiz)
	s.rooms[roomID] = room
	s.broadcastRoomLocked(roomID)
	return nil
}

func (s *RoomStore) IncrementPlayerCount(_ context.Context, roomID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	room.PlayerCount += delta
	s.rooms[roomID] = room
	s.broadcastRoomLocked(roomID)
	return nil
}

func (s *RoomStore) DeleteRoom(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return domain.ErrRoomNotFound
	}
	delete(s.rooms, roomID)
	for pid := range s.participants[roomID] {
		s.closeParticipantWatchersLocked(roomID, pid)
	}
	delete(s.participants, roomID)

	for ch := range s.roomWatchers[roomID] {
		delete(s.roomWatchers[roomID], ch)
		close(ch)
	}
	for ch := range s.participantsWatchers[roomID] {
		delete(s.participantsWatchers[roomID], ch)
		close(ch)
	}
	return nil
}

func (s *RoomStore) CreateParticipant(_ context.Context, p domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byRoom, ok := s.participants[p.RoomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	byRoom[p.ID] = p.Clone()
	s.broadcastParticipantsLocked(p.RoomID)
	s.broadcastParticipantLocked(p.RoomID, p.ID)
	return nil
}

func (s *RoomStore) GetParticipant(_ context.Context, roomID, participantID string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[roomID][participantID]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return p.Clone(), nil
}

func (s *RoomStore) FindParticipantBySession(_ context.Context, roomID, sessionID string) (domain.Participant, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.participants[roomID] {
		if p.SessionID == sessionID {
			return p.Clone(), true, nil
		}
	}
	return domain.Participant{}, false, nil
}

func (s *RoomStore) ListParticipants(_ context.Context, roomID string, activeOnly bool) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.rooms[roomID]; !ok {
		return nil, domain.ErrRoomNotFound
	}
	return s.listLocked(roomID, activeOnly), nil
}

func (s *RoomStore) UpdateParticipant(_ context.Context, roomID, participantID string, patch domain.ParticipantPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[roomID][participantID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	patch.Apply(&p)
	s.participants[roomID][participantID] = p
	s.broadcastParticipantsLocked(roomID)
	s.broadcastParticipantLocked(roomID, participantID)
	return nil
}

func (s *RoomStore) RecordAnswer(_ context.Context, roomID, participantID, questionID string, answer domain.Answer, scoreDelta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[roomID][participantID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	p = p.Clone()
	p.Answers[questionID] = answer
	p.Score += scoreDelta
	s.participants[roomID][participantID] = p
	s.broadcastParticipantsLocked(roomID)
	s.broadcastParticipantLocked(roomID, participantID)
	return nil
}

func (s *RoomStore) WatchRoom(_ context.Context, roomID string) (<-chan domain.Room, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, nil, domain.ErrRoomNotFound
	}

	ch := make(chan domain.Room, 8)
	if s.roomWatchers[roomID] == nil {
		s.roomWatchers[roomID] = make(map[chan domain.Room]struct{})
	}
	s.roomWatchers[roomID][ch] = struct{}{}
	ch <- room

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.roomWatchers[roomID][ch]; ok {
			delete(s.roomWatchers[roomID], ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *RoomStore) WatchParticipants(_ context.Context, roomID string) (<-chan []domain.Participant, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return nil, nil, domain.ErrRoomNotFound
	}

	ch := make(chan []domain.Participant, 8)
	if s.participantsWatchers[roomID] == nil {
		s.participantsWatchers[roomID] = make(map[chan []domain.Participant]struct{})
	}
	s.participantsWatchers[roomID][ch] = struct{}{}
	ch <- s.listLocked(roomID, true)

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.participantsWatchers[roomID][ch]; ok {
			delete(s.participantsWatchers[roomID], ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *RoomStore) WatchParticipant(_ context.Context, roomID, participantID string) (<-chan domain.Participant, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[roomID][participantID]
	if !ok {
		return nil, nil, domain.ErrParticipantNotFound
	}

	key := roomID + "/" + participantID
	ch := make(chan domain.Participant, 8)
	if s.participantWatchers[key] == nil {
		s.participantWatchers[key] = make(map[chan domain.Participant]struct{})
	}
	s.participantWatchers[key][ch] = struct{}{}
	ch <- p.Clone()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.participantWatchers[key][ch]; ok {
			delete(s.participantWatchers[key], ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *RoomStore) listLocked(roomID string, activeOnly bool) []domain.Participant {
	out := make([]domain.Participant, 0, len(s.participants[roomID]))
	for _, p := range s.participants[roomID] {
		if activeOnly && p.Status != domain.ParticipantActive {
			continue
		}
		out = append(out, p.Clone())
	}
	return out
}

func (s *RoomStore) broadcastRoomLocked(roomID string) {
	room, ok := s.rooms[roomID]
	if !ok {
		return
	}
	for ch := range s.roomWatchers[roomID] {
		sendLatest(ch, room)
	}
}

func (s *RoomStore) broadcastParticipantsLocked(roomID string) {
	if len(s.participantsWatchers[roomID]) == 0 {
		return
	}
	snapshot := s.listLocked(roomID, true)
	for ch := range s.participantsWatchers[roomID] {
		sendLatest(ch, snapshot)
	}
}

func (s *RoomStore) broadcastParticipantLocked(roomID, participantID string) {
	key := roomID + "/" + participantID
	if len(s.participantWatchers[key]) == 0 {
		return
	}
	p := s.participants[roomID][participantID].Clone()
	for ch := range s.participantWatchers[key] {
		sendLatest(ch, p)
	}
}

func (s *RoomStore) closeParticipantWatchersLocked(roomID, participantID string) {
	key := roomID + "/" + participantID
	for ch := range s.participantWatchers[key] {
		delete(s.participantWatchers[key], ch)
		close(ch)
	}
}

// sendLatest delivers the snapshot without blocking the store: when the
// watcher is slow, the stale buffered snapshot is dropped first.
func sendLatest[T any](ch chan T, value T) {
	select {
	case ch <- value:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- value
	}
}
