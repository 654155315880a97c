package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"quiz-room-service/internal/domain"
)

// RoomStore abstracts the document store holding rooms and participants
// (in-memory, MongoDB, etc). Partial updates take patches; nil patch fields
// are not written. Watch methods deliver an initial snapshot followed by one
// snapshot per remote change, and the returned cancel func releases the
// subscription.
type RoomStore interface {
	CreateRoom(ctx context.Context, room domain.Room) error
	GetRoom(ctx context.Context, roomID string) (domain.Room, error)
	FindRoomByCode(ctx context.Context, code string) (domain.Room, error)
	UpdateQuiz(ctx context.Context, roomID string, patch domain.QuizPatch) error
	IncrementPlayerCount(ctx context.Context, roomID string, delta int) error
	DeleteRoom(ctx context.Context, roomID string) error

	CreateParticipant(ctx context.Context, p domain.Participant) error
	GetParticipant(ctx context.Context, roomID, participantID string) (domain.Participant, error)
	FindParticipantBySession(ctx context.Context, roomID, sessionID string) (domain.Participant, bool, error)
	ListParticipants(ctx context.Context, roomID string, activeOnly bool) ([]domain.Participant, error)
	UpdateParticipant(ctx context.Context, roomID, participantID string, patch domain.ParticipantPatch) error
	RecordAnswer(ctx context.Context, roomID, participantID, questionID string, answer domain.Answer, scoreDelta int) error

	WatchRoom(ctx context.Context, roomID string) (<-chan domain.Room, func(), error)
	WatchParticipants(ctx context.Context, roomID string) (<-chan []domain.Participant, func(), error)
	WatchParticipant(ctx context.Context, roomID, participantID string) (<-chan domain.Participant, func(), error)
}

// QuestionSetRepository loads stored quiz content (from cache/backing store).
type QuestionSetRepository interface {
	GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// EventPublisher emits room lifecycle events to interested consumers.
// Publishing is fire-and-forget; failures are logged, never propagated.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// RoomService contains the room/participant state machine and scoring rules.
type RoomService struct {
	store  RoomStore
	sets   QuestionSetRepository
	events EventPublisher
	log    *zap.Logger

	now            func() time.Time
	newID          func() string
	newCode        func() string
	joinTimeout    time.Duration
	questionWindow time.Duration
}

// Option customizes a RoomService.
type Option func(*RoomService)

// WithLogger sets the service logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *RoomService) { s.log = log }
}

// WithEvents attaches a lifecycle event publisher.
func WithEvents(events EventPublisher) Option {
	return func(s *RoomService) { s.events = events }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *RoomService) { s.now = now }
}

// WithIDs is test-only for deterministic ids and room codes.
func WithIDs(newID, newCode func() string) Option {
	return func(s *RoomService) {
		s.newID = newID
		s.newCode = newCode
	}
}

// WithJoinTimeout bounds how long a join waits on the store.
func WithJoinTimeout(d time.Duration) Option {
	return func(s *RoomService) { s.joinTimeout = d }
}

// WithQuestionWindow sets the per-question answer window.
func WithQuestionWindow(d time.Duration) Option {
	return func(s *RoomService) { s.questionWindow = d }
}

func NewRoomService(store RoomStore, sets QuestionSetRepository, opts ...Option) *RoomService {
	s := &RoomService{
		store:          store,
		sets:           sets,
		log:            zap.NewNop(),
		now:            time.Now,
		newID:          domain.NewID,
		newCode:        domain.NewRoomCode,
		joinTimeout:    10 * time.Second,
		questionWindow: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRoom creates a room in the waiting state owning the given questions.
func (s *RoomService) CreateRoom(ctx context.Context, adminID string, questions []domain.Question) (domain.Room, error) {
	if len(questions) == 0 {
		return domain.Room{}, domain.ErrNoQuestions
	}
	room := domain.Room{
		ID:      s.newID(),
		Code:    s.newCode(),
		AdminID: adminID,
		Quiz: domain.QuizData{
			Questions:            questions,
			CurrentQuestionIndex: 0,
			Status:               domain.StatusWaiting,
		},
		CreatedAt:   s.now(),
		PlayerCount: 0,
	}
	if err := s.store.CreateRoom(ctx, room); err != nil {
		return domain.Room{}, err
	}
	s.publish(ctx, "room.created", map[string]any{"roomId": room.ID, "code": room.Code})
	return room, nil
}

// CreateRoomFromSet creates a room from a stored question set.
func (s *RoomService) CreateRoomFromSet(ctx context.Context, adminID, setID string) (domain.Room, error) {
	set, err := s.sets.GetQuestionSet(ctx, setID)
	if err != nil {
		return domain.Room{}, err
	}
	return s.CreateRoom(ctx, adminID, set.Questions)
}

// JoinRoom resolves a join code and registers a participant. Joining is
// idempotent per session id: an existing record is returned unchanged and the
// player count is not incremented again. The whole call runs under the join
// timeout budget.
func (s *RoomService) JoinRoom(ctx context.Context, code, name, sessionID string) (domain.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, s.joinTimeout)
	defer cancel()

	p, err := s.join(ctx, code, name, sessionID)
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Participant{}, domain.ErrJoinTimeout
	}
	return p, err
}

func (s *RoomService) join(ctx context.Context, code, name, sessionID string) (domain.Participant, error) {
	room, err := s.store.FindRoomByCode(ctx, code)
	if err != nil {
		return domain.Participant{}, err
	}

	if existing, ok, err := s.store.FindParticipantBySession(ctx, room.ID, sessionID); err != nil {
		return domain.Participant{}, err
	} else if ok {
		return existing, nil
	}

	now := s.now()
	participant := domain.Participant{
		ID:        s.newID(),
		RoomID:    room.ID,
		Name:      name,
		SessionID: sessionID,
		JoinedAt:  now,
		Answers:   map[string]domain.Answer{},
		Score:     0,
		Status:    domain.ParticipantActive,
	}
	// Late joiners of a running quiz inherit the quiz start time so their
	// timeUsed is measured against the same clock as everyone else's.
	if room.Quiz.Status != domain.StatusWaiting && !room.Quiz.Ended() && room.Quiz.QuizStartTime != nil {
		participant.QuizStartedAt = room.Quiz.QuizStartTime
	}

	if err := s.store.CreateParticipant(ctx, participant); err != nil {
		return domain.Participant{}, err
	}

	// Best-effort denormalized counter; a failed increment leaves it stale.
	if err := s.store.IncrementPlayerCount(ctx, room.ID, 1); err != nil {
		s.log.Warn("failed to increment player count",
			zap.String("roomId", room.ID), zap.Error(err))
	}

	s.publish(ctx, "participant.joined", map[string]any{
		"roomId": room.ID, "participantId": participant.ID, "name": name,
	})
	return participant, nil
}

// SubmitAnswer scores a submission and persists answer plus adjusted score as
// a single document update. Resubmission replaces the previous answer and
// applies only the point delta, so a changed answer counts exactly once.
func (s *RoomService) SubmitAnswer(ctx context.Context, roomID, participantID, questionID, optionID string) (domain.Answer, error) {
	participant, err := s.store.GetParticipant(ctx, roomID, participantID)
	if err != nil {
		return domain.Answer{}, err
	}
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return domain.Answer{}, err
	}
	question, ok := room.Quiz.QuestionByID(questionID)
	if !ok {
		return domain.Answer{}, domain.ErrQuestionNotFound
	}

	now := s.now()
	isCorrect := optionID == question.CorrectOptionID

	points := 0
	if isCorrect {
		points = question.BasePoints
	}

	timeTaken := 0
	if start := room.Quiz.QuestionStartTime; start != nil {
		timeTaken = int(now.Sub(*start).Seconds())
	}

	delta := points
	if previous, answered := participant.Answers[questionID]; answered {
		previousPoints := 0
		if previous.IsCorrect {
			previousPoints = question.BasePoints
		}
		delta = points - previousPoints
	}

	answer := domain.Answer{
		OptionID:         optionID,
		SubmittedAt:      now,
		IsCorrect:        isCorrect,
		TimeTakenSeconds: timeTaken,
	}
	if err := s.store.RecordAnswer(ctx, roomID, participantID, questionID, answer, delta); err != nil {
		return domain.Answer{}, err
	}
	return answer, nil
}

// StartQuiz moves a waiting room into quiz_started, stamping the global timer
// and each active participant's start time.
func (s *RoomService) StartQuiz(ctx context.Context, roomID string, durationMinutes int) error {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Quiz.Ended() {
		return domain.ErrQuizEnded
	}
	if room.Quiz.Status != domain.StatusWaiting {
		return domain.ErrInvalidTransition
	}
	if len(room.Quiz.Questions) == 0 {
		return domain.ErrNoQuestions
	}

	now := s.now()
	status := domain.StatusQuizStarted
	firstIndex := 0
	if err := s.store.UpdateQuiz(ctx, roomID, domain.QuizPatch{
		Status:               &status,
		CurrentQuestionIndex: &firstIndex,
		QuizStartTime:        &now,
		QuizDurationMinutes:  &durationMinutes,
	}); err != nil {
		return err
	}

	// Best-effort batch; a participant missed here still gets stamped by the
	// late-join path or the quiz-end pass.
	participants, err := s.store.ListParticipants(ctx, roomID, true)
	if err != nil {
		s.log.Warn("failed to list participants for start stamp", zap.String("roomId", roomID), zap.Error(err))
	}
	for _, p := range participants {
		if err := s.store.UpdateParticipant(ctx, roomID, p.ID, domain.ParticipantPatch{QuizStartedAt: &now}); err != nil {
			s.log.Warn("failed to stamp quiz start",
				zap.String("roomId", roomID), zap.String("participantId", p.ID), zap.Error(err))
		}
	}

	s.publish(ctx, "quiz.started", map[string]any{"roomId": roomID, "durationMinutes": durationMinutes})
	return nil
}

// StartQuestion opens the question at the given index for answers.
func (s *RoomService) StartQuestion(ctx context.Context, roomID string, questionIndex int) error {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Quiz.Ended() {
		return domain.ErrQuizEnded
	}
	if room.Quiz.Status == domain.StatusWaiting {
		return domain.ErrInvalidTransition
	}
	if questionIndex < 0 || questionIndex >= len(room.Quiz.Questions) {
		return domain.ErrQuestionNotFound
	}

	now := s.now()
	end := now.Add(s.questionWindow)
	status := domain.StatusQuestionActive
	return s.store.UpdateQuiz(ctx, roomID, domain.QuizPatch{
		Status:               &status,
		CurrentQuestionIndex: &questionIndex,
		QuestionStartTime:    &now,
		QuestionEndTime:      &end,
	})
}

// EndQuestion closes the currently active question. Ending an already-ended
// question is a no-op.
func (s *RoomService) EndQuestion(ctx context.Context, roomID string) error {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Quiz.Ended() {
		return domain.ErrQuizEnded
	}
	switch room.Quiz.Status {
	case domain.StatusQuestionEnded:
		return nil
	case domain.StatusQuestionActive:
	default:
		return domain.ErrInvalidTransition
	}
	status := domain.StatusQuestionEnded
	return s.store.UpdateQuiz(ctx, roomID, domain.QuizPatch{Status: &status})
}

// NextQuestion advances to the next question, or ends the quiz when the
// current question was the last one. Advancing an ended quiz is a no-op.
func (s *RoomService) NextQuestion(ctx context.Context, roomID string) error {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Quiz.Ended() {
		return nil
	}
	next := room.Quiz.CurrentQuestionIndex + 1
	if next >= len(room.Quiz.Questions) {
		return s.EndQuiz(ctx, roomID)
	}
	return s.StartQuestion(ctx, roomID, next)
}

// EndQuiz moves the room into its terminal state and stamps finish time and
// timeUsed on every active participant who started but has not finished.
// Idempotent: already-finished participants are never touched, and re-setting
// the status has no further effect. The per-participant pass is best-effort;
// failures are logged, not rolled back.
func (s *RoomService) EndQuiz(ctx context.Context, roomID string) error {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return err
	}

	status := domain.StatusQuizEnded
	if err := s.store.UpdateQuiz(ctx, roomID, domain.QuizPatch{Status: &status}); err != nil {
		return err
	}

	participants, err := s.store.ListParticipants(ctx, roomID, true)
	if err != nil {
		s.log.Warn("failed to list participants for finish stamp", zap.String("roomId", roomID), zap.Error(err))
		return nil
	}
	now := s.now()
	for _, p := range participants {
		if p.QuizStartedAt == nil || p.QuizFinishedAt != nil {
			continue
		}
		timeUsed := int(now.Sub(*p.QuizStartedAt).Seconds())
		if err := s.store.UpdateParticipant(ctx, roomID, p.ID, domain.ParticipantPatch{
			QuizFinishedAt:  &now,
			TimeUsedSeconds: &timeUsed,
		}); err != nil {
			s.log.Warn("failed to stamp finish time",
				zap.String("roomId", roomID), zap.String("participantId", p.ID), zap.Error(err))
		}
	}

	s.publish(ctx, "quiz.ended", map[string]any{"roomId": roomID})
	return nil
}

// KickParticipant marks a participant removed; the record is kept.
func (s *RoomService) KickParticipant(ctx context.Context, roomID, participantID string) error {
	if _, err := s.store.GetParticipant(ctx, roomID, participantID); err != nil {
		return err
	}
	removed := domain.ParticipantRemoved
	if err := s.store.UpdateParticipant(ctx, roomID, participantID, domain.ParticipantPatch{Status: &removed}); err != nil {
		return err
	}
	s.publish(ctx, "participant.kicked", map[string]any{"roomId": roomID, "participantId": participantID})
	return nil
}

// LeaveRoom stamps the participant's finish time if the quiz is still running
// for them, then decrements the room's player count. The record is kept so a
// re-join by session id finds it again.
func (s *RoomService) LeaveRoom(ctx context.Context, roomID, participantID string) error {
	participant, err := s.store.GetParticipant(ctx, roomID, participantID)
	if err != nil {
		return err
	}

	if participant.QuizStartedAt != nil && participant.QuizFinishedAt == nil {
		now := s.now()
		timeUsed := int(now.Sub(*participant.QuizStartedAt).Seconds())
		if err := s.store.UpdateParticipant(ctx, roomID, participantID, domain.ParticipantPatch{
			QuizFinishedAt:  &now,
			TimeUsedSeconds: &timeUsed,
		}); err != nil {
			return err
		}
	}

	if err := s.store.IncrementPlayerCount(ctx, roomID, -1); err != nil {
		s.log.Warn("failed to decrement player count",
			zap.String("roomId", roomID), zap.Error(err))
	}
	return nil
}

// DeleteRoom removes the room and all of its participants.
func (s *RoomService) DeleteRoom(ctx context.Context, roomID string) error {
	return s.store.DeleteRoom(ctx, roomID)
}

// GetRoom returns the room by id.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	return s.store.GetRoom(ctx, roomID)
}

// AdminDashboard reports, per participant, whether and how the current
// question was answered.
func (s *RoomService) AdminDashboard(ctx context.Context, roomID string) ([]domain.DashboardRow, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	question, ok := room.Quiz.CurrentQuestion()
	if !ok {
		return nil, domain.ErrQuestionNotFound
	}
	participants, err := s.store.ListParticipants(ctx, roomID, false)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.DashboardRow, 0, len(participants))
	for _, p := range participants {
		row := domain.DashboardRow{
			ParticipantID: p.ID,
			Name:          p.Name,
			Score:         p.Score,
		}
		if answer, answered := p.Answers[question.ID]; answered {
			row.Answered = true
			correct := answer.IsCorrect
			taken := answer.TimeTakenSeconds
			row.IsCorrect = &correct
			row.TimeTaken = &taken
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Leaderboard returns the current ranking of active participants.
func (s *RoomService) Leaderboard(ctx context.Context, roomID string) (domain.Leaderboard, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return domain.Leaderboard{}, err
	}
	participants, err := s.store.ListParticipants(ctx, roomID, true)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return domain.BuildLeaderboard(roomID, participants, s.now()), nil
}

// WatchRoom streams room snapshots; the first send is the current state.
func (s *RoomService) WatchRoom(ctx context.Context, roomID string) (<-chan domain.Room, func(), error) {
	return s.store.WatchRoom(ctx, roomID)
}

// WatchParticipant streams snapshots of a single participant.
func (s *RoomService) WatchParticipant(ctx context.Context, roomID, participantID string) (<-chan domain.Participant, func(), error) {
	return s.store.WatchParticipant(ctx, roomID, participantID)
}

// WatchLeaderboard streams leaderboard snapshots, re-ranking the active
// participants on every change notification.
func (s *RoomService) WatchLeaderboard(ctx context.Context, roomID string) (<-chan domain.Leaderboard, func(), error) {
	src, cancel, err := s.store.WatchParticipants(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	out := make(chan domain.Leaderboard, 8)
	go func() {
		defer close(out)
		for participants := range src {
			lb := domain.BuildLeaderboard(roomID, participants, s.now())
			select {
			case out <- lb:
			default:
				// drop the stale snapshot rather than block the watcher
				select {
				case <-out:
				default:
				}
				out <- lb
			}
		}
	}()
	return out, cancel, nil
}

func (s *RoomService) publish(ctx context.Context, routingKey string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, routingKey, payload); err != nil {
		s.log.Warn("failed to publish event", zap.String("event", routingKey), zap.Error(err))
	}
}
