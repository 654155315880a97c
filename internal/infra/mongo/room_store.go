package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"quiz-room-service/internal/domain"
)

// Notifier distributes change signals for watched documents. The Redis
// implementation makes writes visible across service instances; the in-process
// one keeps single-instance runs dependency-free.
type Notifier interface {
	Publish(ctx context.Context, topic string)
	Subscribe(ctx context.Context, topic string) (<-chan struct{}, func(), error)
}

// RoomStore keeps rooms and participants in MongoDB collections. The store
// itself has no push channel, so every successful write publishes a topic to
// the Notifier and watchers re-read the document on each signal.
type RoomStore struct {
	rooms        *mongo.Collection
	participants *mongo.Collection
	notifier     Notifier
	log          *zap.Logger
}

func NewRoomStore(db *mongo.Database, notifier Notifier, log *zap.Logger) *RoomStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &RoomStore{
		rooms:        db.Collection("rooms"),
		participants: db.Collection("participants"),
		notifier:     notifier,
		log:          log,
	}
}

func (s *RoomStore) CreateRoom(ctx context.Context, room domain.Room) error {
	if _, err := s.rooms.InsertOne(ctx, room); err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	s.notifier.Publish(ctx, roomTopic(room.ID))
	return nil
}

func (s *RoomStore) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	var room domain.Room
	err := s.rooms.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("find room: %w", err)
	}
	return room, nil
}

func (s *RoomStore) FindRoomByCode(ctx context.Context, code string) (domain.Room, error) {
	var room domain.Room
	err := s.rooms.FindOne(ctx, bson.M{"code": code}).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("find room by code: %w", err)
	}
	return room, nil
}

func (s *RoomStore) UpdateQuiz(ctx context.Context, roomID string, patch domain.QuizPatch) error {
	set := bson.M{}
	if patch.Status != nil {
		set["quiz.status"] = *patch.Status
	}
	if patch.CurrentQuestionIndex != nil {
		set["quiz.currentQuestionIndex"] = *patch.CurrentQuestionIndex
	}
	if patch.QuestionStartTime != nil {
		set["quiz.questionStartTime"] = *patch.QuestionStartTime
	}
	if patch.QuestionEndTime != nil {
		set["quiz.questionEndTime"] = *patch.QuestionEndTime
	}
	if patch.QuizStartTime != nil {
		set["quiz.quizStartTime"] = *patch.QuizStartTime
	}
	if patch.QuizDurationMinutes != nil {
		set["quiz.quizDurationMinutes"] = *patch.QuizDurationMinutes
	}
	if len(set) == 0 {
		return nil
	}

	result, err := s.rooms.UpdateOne(ctx, bson.M{"_id": roomID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrRoomNotFound
	}
	s.notifier.Publish(ctx, roomTopic(roomID))
	return nil
}

func (s *RoomStore) IncrementPlayerCount(ctx context.Context, roomID string, delta int) error {
	result, err := s.rooms.UpdateOne(ctx, bson.M{"_id": roomID}, bson.M{"$inc": bson.M{"playerCount": delta}})
	if err != nil {
		return fmt.Errorf("increment player count: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrRoomNotFound
	}
	s.notifier.Publish(ctx, roomTopic(roomID))
	return nil
}

func (s *RoomStore) DeleteRoom(ctx context.Context, roomID string) error {
	if _, err := s.participants.DeleteMany(ctx, bson.M{"roomId": roomID}); err != nil {
		return fmt.Errorf("delete participants: %w", err)
	}
	result, err := s.rooms.DeleteOne(ctx, bson.M{"_id": roomID})
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrRoomNotFound
	}
	s.notifier.Publish(ctx, roomTopic(roomID))
	s.notifier.Publish(ctx, participantsTopic(roomID))
	return nil
}

func (s *RoomStore) CreateParticipant(ctx context.Context, p domain.Participant) error {
	if _, err := s.participants.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	s.notifier.Publish(ctx, participantsTopic(p.RoomID))
	s.notifier.Publish(ctx, participantTopic(p.RoomID, p.ID))
	return nil
}

func (s *RoomStore) GetParticipant(ctx context.Context, roomID, participantID string) (domain.Participant, error) {
	var p domain.Participant
	err := s.participants.FindOne(ctx, bson.M{"_id": participantID, "roomId": roomID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, fmt.Errorf("find participant: %w", err)
	}
	return p, nil
}

func (s *RoomStore) FindParticipantBySession(ctx context.Context, roomID, sessionID string) (domain.Participant, bool, error) {
	var p domain.Participant
	err := s.participants.FindOne(ctx, bson.M{"roomId": roomID, "sessionId": sessionID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Participant{}, false, nil
	}
	if err != nil {
		return domain.Participant{}, false, fmt.Errorf("find participant by session: %w", err)
	}
	return p, true, nil
}

func (s *RoomStore) ListParticipants(ctx context.Context, roomID string, activeOnly bool) ([]domain.Participant, error) {
	filter := bson.M{"roomId": roomID}
	if activeOnly {
		filter["status"] = domain.ParticipantActive
	}
	cursor, err := s.participants.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer cursor.Close(ctx)

	var out []domain.Participant
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	return out, nil
}

func (s *RoomStore) UpdateParticipant(ctx context.Context, roomID, participantID string, patch domain.ParticipantPatch) error {
	set := bson.M{}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.QuizStartedAt != nil {
		set["quizStartedAt"] = *patch.QuizStartedAt
	}
	if patch.QuizFinishedAt != nil {
		set["quizFinishedAt"] = *patch.QuizFinishedAt
	}
	if patch.TimeUsedSeconds != nil {
		set["timeUsedSeconds"] = *patch.TimeUsedSeconds
	}
	if len(set) == 0 {
		return nil
	}

	result, err := s.participants.UpdateOne(ctx, bson.M{"_id": participantID, "roomId": roomID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrParticipantNotFound
	}
	s.notifier.Publish(ctx, participantsTopic(roomID))
	s.notifier.Publish(ctx, participantTopic(roomID, participantID))
	return nil
}

// RecordAnswer persists the answer and the score delta in one document update,
// using $inc so the score adjustment applies atomically on the server.
func (s *RoomStore) RecordAnswer(ctx context.Context, roomID, participantID, questionID string, answer domain.Answer, scoreDelta int) error {
	update := bson.M{
		"$set": bson.M{"answers." + questionID: answer},
		"$inc": bson.M{"score": scoreDelta},
	}
	result, err := s.participants.UpdateOne(ctx, bson.M{"_id": participantID, "roomId": roomID}, update)
	if err != nil {
		return fmt.Errorf("record answer: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrParticipantNotFound
	}
	s.notifier.Publish(ctx, participantsTopic(roomID))
	s.notifier.Publish(ctx, participantTopic(roomID, participantID))
	return nil
}

func (s *RoomStore) WatchRoom(ctx context.Context, roomID string) (<-chan domain.Room, func(), error) {
	initial, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	signals, cancel, err := s.notifier.Subscribe(ctx, roomTopic(roomID))
	if err != nil {
		return nil, nil, err
	}

	out := make(chan domain.Room, 8)
	go func() {
		defer close(out)
		sendLatest(out, initial)
		for range signals {
			room, err := s.GetRoom(context.Background(), roomID)
			if errors.Is(err, domain.ErrRoomNotFound) {
				return
			}
			if err != nil {
				s.log.Warn("watch room re-read failed", zap.String("roomId", roomID), zap.Error(err))
				continue
			}
			sendLatest(out, room)
		}
	}()
	return out, cancel, nil
}

func (s *RoomStore) WatchParticipants(ctx context.Context, roomID string) (<-chan []domain.Participant, func(), error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, nil, err
	}
	initial, err := s.ListParticipants(ctx, roomID, true)
	if err != nil {
		return nil, nil, err
	}
	signals, cancel, err := s.notifier.Subscribe(ctx, participantsTopic(roomID))
	if err != nil {
		return nil, nil, err
	}

	out := make(chan []domain.Participant, 8)
	go func() {
		defer close(out)
		sendLatest(out, initial)
		for range signals {
			participants, err := s.ListParticipants(context.Background(), roomID, true)
			if err != nil {
				s.log.Warn("watch participants re-read failed", zap.String("roomId", roomID), zap.Error(err))
				continue
			}
			sendLatest(out, participants)
		}
	}()
	return out, cancel, nil
}

func (s *RoomStore) WatchParticipant(ctx context.Context, roomID, participantID string) (<-chan domain.Participant, func(), error) {
	initial, err := s.GetParticipant(ctx, roomID, participantID)
	if err != nil {
		return nil, nil, err
	}
	signals, cancel, err := s.notifier.Subscribe(ctx, participantTopic(roomID, participantID))
	if err != nil {
		return nil, nil, err
	}

	out := make(chan domain.Participant, 8)
	go func() {
		defer close(out)
		sendLatest(out, initial)
		for range signals {
			p, err := s.GetParticipant(context.Background(), roomID, participantID)
			if errors.Is(err, domain.ErrParticipantNotFound) {
				return
			}
			if err != nil {
				s.log.Warn("watch participant re-read failed",
					zap.String("roomId", roomID), zap.String("participantId", participantID), zap.Error(err))
				continue
			}
			sendLatest(out, p)
		}
	}()
	return out, cancel, nil
}

func roomTopic(roomID string) string {
	return "room:" + roomID
}

func participantsTopic(roomID string) string {
	return "room:" + roomID + ":participants"
}

func participantTopic(roomID, participantID string) string {
	return "room:" + roomID + ":participant:" + participantID
}

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
