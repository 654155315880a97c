package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

// Handler exposes the room commands over REST. Realtime state flows through
// the WebSocket handler; these endpoints are single request/response calls.
type Handler struct {
	service *app.RoomService
	log     *zap.Logger
}

func NewHandler(service *app.RoomService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{service: service, log: log}
}

type createRoomRequest struct {
	AdminID       string            `json:"adminId" binding:"required"`
	Questions     []domain.Question `json:"questions"`
	QuestionSetID string            `json:"questionSetId"`
}

type joinRoomRequest struct {
	Code      string `json:"code" binding:"required"`
	Name      string `json:"name" binding:"required"`
	SessionID string `json:"sessionId" binding:"required"`
}

type submitAnswerRequest struct {
	ParticipantID string `json:"participantId" binding:"required"`
	QuestionID    string `json:"questionId" binding:"required"`
	OptionID      string `json:"optionId" binding:"required"`
}

type startQuizRequest struct {
	DurationMinutes int `json:"durationMinutes" binding:"required"`
}

type startQuestionRequest struct {
	QuestionIndex int `json:"questionIndex"`
}

func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		room domain.Room
		err  error
	)
	if req.QuestionSetID != "" {
		room, err = h.service.CreateRoomFromSet(c.Request.Context(), req.AdminID, req.QuestionSetID)
	} else {
		room, err = h.service.CreateRoom(c.Request.Context(), req.AdminID, req.Questions)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *Handler) JoinRoom(c *gin.Context) {
	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	participant, err := h.service.JoinRoom(c.Request.Context(), req.Code, req.Name, req.SessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"roomId":        participant.RoomID,
		"participantId": participant.ID,
		"participant":   participant,
	})
}

func (h *Handler) SubmitAnswer(c *gin.Context) {
	var req submitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	answer, err := h.service.SubmitAnswer(c.Request.Context(), c.Param("id"), req.ParticipantID, req.QuestionID, req.OptionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questionId": req.QuestionID, "correct": answer.IsCorrect, "timeTaken": answer.TimeTakenSeconds})
}

func (h *Handler) GetRoom(c *gin.Context) {
	room, err := h.service.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) StartQuiz(c *gin.Context) {
	var req startQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.StartQuiz(c.Request.Context(), c.Param("id"), req.DurationMinutes); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) StartQuestion(c *gin.Context) {
	var req startQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.StartQuestion(c.Request.Context(), c.Param("id"), req.QuestionIndex); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) EndQuestion(c *gin.Context) {
	if err := h.service.EndQuestion(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) NextQuestion(c *gin.Context) {
	if err := h.service.NextQuestion(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) EndQuiz(c *gin.Context) {
	if err := h.service.EndQuiz(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) KickParticipant(c *gin.Context) {
	if err := h.service.KickParticipant(c.Request.Context(), c.Param("id"), c.Param("pid")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) LeaveRoom(c *gin.Context) {
	if err := h.service.LeaveRoom(c.Request.Context(), c.Param("id"), c.Param("pid")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Leaderboard(c *gin.Context) {
	lb, err := h.service.Leaderboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lb)
}

func (h *Handler) Dashboard(c *gin.Context) {
	rows, err := h.service.AdminDashboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) DeleteRoom(c *gin.Context) {
	if err := h.service.DeleteRoom(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, domain.ErrParticipantNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrQuestionSetNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrQuizEnded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNoQuestions):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrJoinTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
