package domain

import "errors"

var (
	// ErrRoomNotFound is returned when no room matches the id or join code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrParticipantNotFound is returned when a participant id has no record in the room.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrQuestionNotFound indicates the question id is not in the room's question list.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrQuestionSetNotFound indicates stored quiz content could not be loaded.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrNoQuestions rejects starting a quiz with an empty question list.
	ErrNoQuestions = errors.New("room has no questions")
	// ErrQuizEnded rejects commands against a room in its terminal state.
	ErrQuizEnded = errors.New("quiz already ended")
	// ErrInvalidTransition rejects a host command the current status does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrJoinTimeout is returned when a join exceeds its wall-clock budget.
	ErrJoinTimeout = errors.New("join timed out")
)
