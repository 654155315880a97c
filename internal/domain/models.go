package domain

import "time"

// Status is the room's state-machine variable. Transitions are driven by host
// commands only; quiz_ended is terminal.
type Status string

const (
	StatusWaiting        Status = "waiting"
	StatusQuizStarted    Status = "quiz_started"
	StatusQuestionActive Status = "question_active"
	StatusQuestionEnded  Status = "question_ended"
	StatusQuizEnded      Status = "quiz_ended"
)

// ParticipantStatus marks whether a participant is still playing or was kicked.
type ParticipantStatus string

const (
	ParticipantActive  ParticipantStatus = "active"
	ParticipantRemoved ParticipantStatus = "removed"
)

// Option is a possible answer. Its ID is stable and independent of display order.
type Option struct {
	ID   string `json:"id" bson:"id"`
	Text string `json:"text" bson:"text"`
}

// Question is immutable once its room has been created.
type Question struct {
	ID              string   `json:"id" bson:"id"`
	Text            string   `json:"text" bson:"text"`
	Options         []Option `json:"options" bson:"options"`
	CorrectOptionID string   `json:"correctOptionId" bson:"correctOptionId"`
	BasePoints      int      `json:"basePoints" bson:"basePoints"`
}

// QuizData holds the question list and the live state of a quiz run.
type QuizData struct {
	Questions            []Question `json:"questions" bson:"questions"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex" bson:"currentQuestionIndex"`
	Status               Status     `json:"status" bson:"status"`
	QuestionStartTime    *time.Time `json:"questionStartTime" bson:"questionStartTime"`
	QuestionEndTime      *time.Time `json:"questionEndTime" bson:"questionEndTime"`
	QuizStartTime        *time.Time `json:"quizStartTime" bson:"quizStartTime"`
	QuizDurationMinutes  int        `json:"quizDurationMinutes" bson:"quizDurationMinutes"`
}

// QuestionByID returns the question with the given id, if present.
func (q QuizData) QuestionByID(id string) (Question, bool) {
	for i := range q.Questions {
		if q.Questions[i].ID == id {
			return q.Questions[i], true
		}
	}
	return Question{}, false
}

// CurrentQuestion returns the question at CurrentQuestionIndex.
func (q QuizData) CurrentQuestion() (Question, bool) {
	if q.CurrentQuestionIndex < 0 || q.CurrentQuestionIndex >= len(q.Questions) {
		return Question{}, false
	}
	return q.Questions[q.CurrentQuestionIndex], true
}

// Ended reports whether the quiz reached its terminal state.
func (q QuizData) Ended() bool {
	return q.Status == StatusQuizEnded
}

// Room is a single quiz session instance identified by a join code.
type Room struct {
	ID          string    `json:"id" bson:"_id"`
	Code        string    `json:"code" bson:"code"`
	AdminID     string    `json:"adminId" bson:"adminId"`
	Quiz        QuizData  `json:"quiz" bson:"quiz"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	PlayerCount int       `json:"playerCount" bson:"playerCount"`
}

// Answer records a participant's submission for one question. At most one per
// question; resubmission overwrites it.
type Answer struct {
	OptionID         string    `json:"optionId" bson:"optionId"`
	SubmittedAt      time.Time `json:"submittedAt" bson:"submittedAt"`
	IsCorrect        bool      `json:"isCorrect" bson:"isCorrect"`
	TimeTakenSeconds int       `json:"timeTakenSeconds" bson:"timeTakenSeconds"`
}

// Participant is one joined player within a room, keyed by a client-generated
// session id so re-joins are idempotent.
type Participant struct {
	ID              string            `json:"id" bson:"_id"`
	RoomID          string            `json:"roomId" bson:"roomId"`
	Name            string            `json:"name" bson:"name"`
	SessionID       string            `json:"sessionId" bson:"sessionId"`
	JoinedAt        time.Time         `json:"joinedAt" bson:"joinedAt"`
	Answers         map[string]Answer `json:"answers" bson:"answers"`
	Score           int               `json:"score" bson:"score"`
	Status          ParticipantStatus `json:"status" bson:"status"`
	QuizStartedAt   *time.Time        `json:"quizStartedAt" bson:"quizStartedAt"`
	QuizFinishedAt  *time.Time        `json:"quizFinishedAt" bson:"quizFinishedAt"`
	TimeUsedSeconds *int              `json:"timeUsedSeconds" bson:"timeUsedSeconds"`
}

// Clone returns a deep copy so stored participants cannot be mutated through
// shared answer maps.
func (p Participant) Clone() Participant {
	cp := p
	cp.Answers = make(map[string]Answer, len(p.Answers))
	for k, v := range p.Answers {
		cp.Answers[k] = v
	}
	return cp
}

// DashboardRow is the host's per-participant view of the current question.
type DashboardRow struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	Answered      bool   `json:"answered"`
	IsCorrect     *bool  `json:"isCorrect"`
	TimeTaken     *int   `json:"timeTaken"`
	Score         int    `json:"score"`
}

// QuestionSet is stored quiz content a host can create rooms from.
type QuestionSet struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}
