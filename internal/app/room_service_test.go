package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"
)

func TestJoinIsIdempotentPerSession(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)
	room := createTestRoom(t, service)

	first, err := service.JoinRoom(ctx, room.Code, "Alice", "session-1")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	second, err := service.JoinRoom(ctx, room.Code, "Alice", "session-1")
	if err != nil {
		t.Fatalf("re-join: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same participant on re-join, got %s and %s", first.ID, second.ID)
	}

	got, err := store.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if got.PlayerCount != 1 {
		t.Fatalf("expected playerCount 1 after duplicate join, got %d", got.PlayerCount)
	}

	if _, err := service.JoinRoom(ctx, room.Code, "Bob", "session-2"); err != nil {
		t.Fatalf("second join: %v", err)
	}
	got, _ = store.GetRoom(ctx, room.ID)
	if got.PlayerCount != 2 {
		t.Fatalf("expected playerCount 2, got %d", got.PlayerCount)
	}
}

func TestJoinUnknownCode(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	createTestRoom(t, service)

	_, err := service.JoinRoom(ctx, "NOPE42", "Alice", "session-1")
	if !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected room not found, got %v", err)
	}
}

func TestSubmitAnswerScoresOnceOnResubmission(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)
	room := createTestRoom(t, service)
	participant := join(t, service, room.Code, "Alice", "session-1")

	answer, err := service.SubmitAnswer(ctx, room.ID, participant.ID, "q1", "o2")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !answer.IsCorrect {
		t.Fatalf("expected o2 to be correct")
	}
	assertScore(t, store, room.ID, participant.ID, 10)

	// Change to a wrong answer: previous points must be subtracted.
	answer, err = service.SubmitAnswer(ctx, room.ID, participant.ID, "q1", "o1")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if answer.IsCorrect {
		t.Fatalf("expected o1 to be wrong")
	}
	assertScore(t, store, room.ID, participant.ID, 0)

	// Back to correct: counted exactly once, not twice.
	if _, err := service.SubmitAnswer(ctx, room.ID, participant.ID, "q1", "o2"); err != nil {
		t.Fatalf("resubmit correct: %v", err)
	}
	assertScore(t, store, room.ID, participant.ID, 10)

	if _, err := service.SubmitAnswer(ctx, room.ID, participant.ID, "q2", "o1"); err != nil {
		t.Fatalf("submit q2: %v", err)
	}
	assertScore(t, store, room.ID, participant.ID, 30)
}

func TestSubmitAnswerUnknownQuestion(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)
	room := createTestRoom(t, service)
	participant := join(t, service, room.Code, "Alice", "session-1")

	_, err := service.SubmitAnswer(ctx, room.ID, participant.ID, "q9", "o1")
	if !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
	assertScore(t, store, room.ID, participant.ID, 0)
}

func TestSubmitAnswerUnknownParticipant(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	room := createTestRoom(t, service)

	_, err := service.SubmitAnswer(ctx, room.ID, "ghost", "q1", "o1")
	if !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("expected participant not found, got %v", err)
	}
}

func TestStartQuizTransitions(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)
	room := createTestRoom(t, service)
	participant := join(t, service, room.Code, "Alice", "session-1")

	if err := service.StartQuiz(ctx, room.ID, 5); err != nil {
		t.Fatalf("start quiz: %v", err)
	}

	got, _ := store.GetRoom(ctx, room.ID)
	if got.Quiz.Status != domain.StatusQuizStarted {
		t.Fatalf("expected quiz_started, got %s", got.Quiz.Status)
	}
	if got.Quiz.QuizStartTime == nil || got.Quiz.QuizDurationMinutes != 5 {
		t.Fatalf("expected global timer fields set, got %+v", got.Quiz)
	}

	p, _ := store.GetParticipant(ctx, room.ID, participant.ID)
	if p.QuizStartedAt == nil {
		t.Fatalf("expected participant start stamp")
	}

	if err := service.StartQuiz(ctx, room.ID, 5); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition on double start, got %v", err)
	}
}

func TestQuestionCycle(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)
	room := createTestRoom(t, service)

	if err := service.StartQuestion(ctx, room.ID, 0); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition before start, got %v", err)
	}

	if err := service.StartQuiz(ctx, room.ID, 5); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if err := service.StartQuestion(ctx, room.ID, 0); err != nil {
		t.Fatalf("start question: %v", err)
	}

	got, _ := store.GetRoom(ctx, room.ID)
	if got.Quiz.Status != domain.StatusQuestionActive {
		t.Fatalf("expected question_active, got %s", got.Quiz.Status)
	}
	if got.Quiz.QuestionStartTime == nil || got.Quiz.QuestionEndTime == nil {
		t.Fatalf("expected question window set")
	}
	if !got.Quiz.QuestionEndTime.After(*got.Quiz.QuestionStartTime) {
		t.Fatalf("expected end after start")
	}

	if err := service.EndQuestion(ctx, room.ID); err != nil {
		t.Fatalf("end question: %v", err)
	}
	// Ending an already-ended question is a no-op.
	if err := service.EndQuestion(ctx, room.ID); err != nil {
		t.Fatalf("end question twice: %v", err)
	}
	got, _ = store.GetRoom(ctx, room.ID)
	if got.Quiz.Status != domain.StatusQuestionEnded {
		t.Fatalf("expected question_ended, got %s", got.Quiz.Status)
	}

	if err := service.StartQuestion(ctx, room.ID, 5); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found for bad index, got %v", err)
	}
}

func TestNextQuestionPastLastEndsQuiz(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)
	room := createTestRoom(t, service)

	if err := service.StartQuiz(ctx, room.ID, 5); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if err := service.NextQuestion(ctx, room.ID); err != nil {
		t.Fatalf("next: %v", err)
	}
	got, _ := store.GetRoom(ctx, room.ID)
	if got.Quiz.CurrentQuestionIndex != 1 || got.Quiz.Status != domain.StatusQuestionActive {
		t.Fatalf("expected second question active, got %+v", got.Quiz)
	}

	if err := service.NextQuestion(ctx, room.ID); err != nil {
		t.Fatalf("next past last: %v", err)
	}
	got, _ = store.GetRoom(ctx, room.ID)
	if got.Quiz.Status != domain.StatusQuizEnded {
		t.Fatalf("expected quiz_ended, got %s", got.Quiz.Status)
	}
}

func TestEndQuizStampsTimeUsedAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)
	room := createTestRoom(t, service)
	participant := join(t, service, room.Code, "Alice", "session-1")

	if err := service.StartQuiz(ctx, room.ID, 5); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if err := service.EndQuiz(ctx, room.ID); err != nil {
		t.Fatalf("end quiz: %v", err)
	}

	p, _ := store.GetParticipant(ctx, room.ID, participant.ID)
	if p.QuizFinishedAt == nil || p.TimeUsedSeconds == nil {
		t.Fatalf("expected finish stamp, got %+v", p)
	}
	finishedAt := *p.QuizFinishedAt
	timeUsed := *p.TimeUsedSeconds

	if err := service.EndQuiz(ctx, room.ID); err != nil {
		t.Fatalf("end quiz twice: %v", err)
	}
	p, _ = store.GetParticipant(ctx, room.ID, participant.ID)
	if !p.QuizFinishedAt.Equal(finishedAt) || *p.TimeUsedSeconds != timeUsed {
		t.Fatalf("expected finish stamp unchanged on second end")
	}
	got, _ := store.GetRoom(ctx, room.ID)
	if got.Quiz.Status != domain.StatusQuizEnded {
		t.Fatalf("expected quiz_ended, got %s", got.Quiz.Status)
	}
}

func TestLateJoinerInheritsQuizStart(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)
	room := createTestRoom(t, service)

	if err := service.StartQuiz(ctx, room.ID, 5); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	participant := join(t, service, room.Code, "Late", "session-9")

	got, _ := store.GetRoom(ctx, room.ID)
	p, _ := store.GetParticipant(ctx, room.ID, participant.ID)
	if p.QuizStartedAt == nil || !p.QuizStartedAt.Equal(*got.Quiz.QuizStartTime) {
		t.Fatalf("expected late joiner to inherit quiz start time")
	}
}

func TestKickRemovesFromLeaderboard(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)
	room := createTestRoom(t, service)
	participant := join(t, service, room.Code, "Alice", "session-1")

	if err := service.KickParticipant(ctx, room.ID, participant.ID); err != nil {
		t.Fatalf("kick: %v", err)
	}

	active, err := store.ListParticipants(ctx, room.ID, true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active participants, got %d", len(active))
	}
	// Record is kept, only marked removed.
	p, err := store.GetParticipant(ctx, room.ID, participant.ID)
	if err != nil {
		t.Fatalf("get kicked participant: %v", err)
	}
	if p.Status != domain.ParticipantRemoved {
		t.Fatalf("expected removed status, got %s", p.Status)
	}
}

func TestLeaveRoomStampsFinishAndDecrementsCount(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)
	room := createTestRoom(t, service)
	participant := join(t, service, room.Code, "Alice", "session-1")

	if err := service.StartQuiz(ctx, room.ID, 5); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if err := service.LeaveRoom(ctx, room.ID, participant.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}

	p, _ := store.GetParticipant(ctx, room.ID, participant.ID)
	if p.QuizFinishedAt == nil || p.TimeUsedSeconds == nil {
		t.Fatalf("expected finish stamp on leave")
	}
	got, _ := store.GetRoom(ctx, room.ID)
	if got.PlayerCount != 0 {
		t.Fatalf("expected playerCount back to 0, got %d", got.PlayerCount)
	}
}

func TestAdminDashboard(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	room := createTestRoom(t, service)
	alice := join(t, service, room.Code, "Alice", "session-1")
	join(t, service, room.Code, "Bob", "session-2")

	if err := service.StartQuiz(ctx, room.ID, 5); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, room.ID, alice.ID, "q1", "o2"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	rows, err := service.AdminDashboard(ctx, room.ID)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	aliceIdx, bobIdx := -1, -1
	for i := range rows {
		switch rows[i].Name {
		case "Alice":
			aliceIdx = i
		case "Bob":
			bobIdx = i
		}
	}
	if aliceIdx == -1 || bobIdx == -1 {
		t.Fatalf("expected rows for both participants, got %+v", rows)
	}
	if !rows[aliceIdx].Answered || rows[aliceIdx].IsCorrect == nil || !*rows[aliceIdx].IsCorrect {
		t.Fatalf("expected Alice answered correctly, got %+v", rows[aliceIdx])
	}
	if rows[bobIdx].Answered {
		t.Fatalf("expected Bob unanswered, got %+v", rows[bobIdx])
	}
}

func TestWatchLeaderboardReceivesScoreUpdates(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	room := createTestRoom(t, service)
	participant := join(t, service, room.Code, "Alice", "session-1")

	updates, cancel, err := service.WatchLeaderboard(ctx, room.ID)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer cancel()

	if _, err := service.SubmitAnswer(ctx, room.ID, participant.ID, "q1", "o2"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case lb, ok := <-updates:
			if !ok {
				t.Fatalf("updates channel closed early")
			}
			if len(lb.Entries) == 1 && lb.Entries[0].Score == 10 {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for leaderboard update")
		}
	}
}

func TestCreateRoomFromSet(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	room, err := service.CreateRoomFromSet(ctx, "admin-1", "set-1")
	if err != nil {
		t.Fatalf("create from set: %v", err)
	}
	if len(room.Quiz.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(room.Quiz.Questions))
	}
	if len(room.Code) != 6 {
		t.Fatalf("expected 6-char code, got %q", room.Code)
	}

	_, err = service.CreateRoomFromSet(ctx, "admin-1", "missing")
	if !errors.Is(err, domain.ErrQuestionSetNotFound) {
		t.Fatalf("expected question set not found, got %v", err)
	}
}

func TestCreateRoomRequiresQuestions(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	_, err := service.CreateRoom(ctx, "admin-1", nil)
	if !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected no questions error, got %v", err)
	}
}

func newTestService(t *testing.T) (*app.RoomService, *memory.RoomStore) {
	t.Helper()
	store := memory.NewRoomStore()
	sets := memory.NewQuestionSetRepository(memory.NewStaticQuestionSetLoader(map[string]domain.QuestionSet{
		"set-1": {ID: "set-1", Title: "Sample", Questions: sampleQuestions()},
	}), 5*time.Minute)
	return app.NewRoomService(store, sets), store
}

func createTestRoom(t *testing.T, service *app.RoomService) domain.Room {
	t.Helper()
	room, err := service.CreateRoom(context.Background(), "admin-1", sampleQuestions())
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return room
}

func join(t *testing.T, service *app.RoomService, code, name, sessionID string) domain.Participant {
	t.Helper()
	participant, err := service.JoinRoom(context.Background(), code, name, sessionID)
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return participant
}

func assertScore(t *testing.T, store *memory.RoomStore, roomID, participantID string, want int) {
	t.Helper()
	p, err := store.GetParticipant(context.Background(), roomID, participantID)
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	if p.Score != want {
		t.Fatalf("expected score %d, got %d", want, p.Score)
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:   "q1",
			Text: "What is 2 + 2?",
			Options: []domain.Option{
				{ID: "o1", Text: "3"},
				{ID: "o2", Text: "4"},
				{ID: "o3", Text: "5"},
			},
			CorrectOptionID: "o2",
			BasePoints:      10,
		},
		{
			ID:   "q2",
			Text: "What is 10 * 2?",
			Options: []domain.Option{
				{ID: "o1", Text: "20"},
				{ID: "o2", Text: "12"},
			},
			CorrectOptionID: "o1",
			BasePoints:      20,
		},
	}
}
