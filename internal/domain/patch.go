package domain

import "time"

// QuizPatch is a partial update of a room's quiz fields. Nil fields are left
// untouched by the store.
type QuizPatch struct {
	Status               *Status
	CurrentQuestionIndex *int
	QuestionStartTime    *time.Time
	QuestionEndTime      *time.Time
	QuizStartTime        *time.Time
	QuizDurationMinutes  *int
}

// ParticipantPatch is a partial update of a participant document.
type ParticipantPatch struct {
	Status          *ParticipantStatus
	QuizStartedAt   *time.Time
	QuizFinishedAt  *time.Time
	TimeUsedSeconds *int
}

// Apply copies the non-nil patch fields onto the quiz.
func (p QuizPatch) Apply(q *QuizData) {
	if p.Status != nil {
		q.Status = *p.Status
	}
	if p.CurrentQuestionIndex != nil {
		q.CurrentQuestionIndex = *p.CurrentQuestionIndex
	}
	if p.QuestionStartTime != nil {
		q.QuestionStartTime = p.QuestionStartTime
	}
	if p.QuestionEndTime != nil {
		q.QuestionEndTime = p.QuestionEndTime
	}
	if p.QuizStartTime != nil {
		q.QuizStartTime = p.QuizStartTime
	}
	if p.QuizDurationMinutes != nil {
		q.QuizDurationMinutes = *p.QuizDurationMinutes
	}
}

// Apply copies the non-nil patch fields onto the participant.
func (p ParticipantPatch) Apply(target *Participant) {
	if p.Status != nil {
		target.Status = *p.Status
	}
	if p.QuizStartedAt != nil {
		target.QuizStartedAt = p.QuizStartedAt
	}
	if p.QuizFinishedAt != nil {
		target.QuizFinishedAt = p.QuizFinishedAt
	}
	if p.TimeUsedSeconds != nil {
		target.TimeUsedSeconds = p.TimeUsedSeconds
	}
}
