package http

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

// WSHandler pushes room, leaderboard, and participant snapshots to connected
// clients and accepts answer submissions inbound.
type WSHandler struct {
	service  *app.RoomService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.RoomService, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

type answerResult struct {
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
	TimeTaken  int    `json:"timeTaken"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the connection and streams watch snapshots until the client
// disconnects. With a participantId the client also receives its own
// participant snapshots and may submit answers inbound.
func (h *WSHandler) ServeWS(c *gin.Context) {
	roomID := c.Query("roomId")
	participantID := c.Query("participantId")
	if roomID == "" {
		c.String(http.StatusBadRequest, "missing roomId")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()

	roomUpdates, cancelRoom, err := h.service.WatchRoom(ctx, roomID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancelRoom()

	leaderboardUpdates, cancelLeaderboard, err := h.service.WatchLeaderboard(ctx, roomID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancelLeaderboard()

	var participantUpdates <-chan domain.Participant
	if participantID != "" {
		var cancelParticipant func()
		participantUpdates, cancelParticipant, err = h.service.WatchParticipant(ctx, roomID, participantID)
		if err != nil {
			_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return
		}
		defer cancelParticipant()
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	var forwarders sync.WaitGroup
	forwarders.Add(2)
	go forward(roomUpdates, "room", send, closeSignals, &forwarders)
	go forward(leaderboardUpdates, "leaderboard", send, closeSignals, &forwarders)
	if participantUpdates != nil {
		forwarders.Add(1)
		go forward(participantUpdates, "participant", send, closeSignals, &forwarders)
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			if participantID == "" {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "answers require participantId"}}
				continue
			}
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			answer, err := h.service.SubmitAnswer(ctx, roomID, participantID, payload.QuestionID, payload.OptionID)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			// The leaderboard push arrives through the watch channel.
			send <- outboundMessage[any]{Type: "answerResult", Payload: answerResult{
				QuestionID: payload.QuestionID,
				Correct:    answer.IsCorrect,
				TimeTaken:  answer.TimeTakenSeconds,
			}}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	forwarders.Wait()
	close(send)
	<-writerDone
}

func forward[T any](src <-chan T, msgType string, send chan<- outboundMessage[any], closeSignals <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case update, ok := <-src:
			if !ok {
				return
			}
			select {
			case send <- outboundMessage[any]{Type: msgType, Payload: update}:
			case <-closeSignals:
				return
			}
		case <-closeSignals:
			return
		}
	}
}
