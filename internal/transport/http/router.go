package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter wires the REST command surface and the WebSocket watch endpoint.
func NewRouter(handler *Handler, wsHandler *WSHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	rooms := r.Group("/rooms")
	{
		rooms.POST("", handler.CreateRoom)
		rooms.POST("/join", handler.JoinRoom)
		rooms.GET("/:id", handler.GetRoom)
		rooms.DELETE("/:id", handler.DeleteRoom)
		rooms.POST("/:id/answers", handler.SubmitAnswer)
		rooms.POST("/:id/start", handler.StartQuiz)
		rooms.POST("/:id/question/start", handler.StartQuestion)
		rooms.POST("/:id/question/end", handler.EndQuestion)
		rooms.POST("/:id/next", handler.NextQuestion)
		rooms.POST("/:id/end", handler.EndQuiz)
		rooms.GET("/:id/leaderboard", handler.Leaderboard)
		rooms.GET("/:id/dashboard", handler.Dashboard)
		rooms.POST("/:id/participants/:pid/kick", handler.KickParticipant)
		rooms.POST("/:id/participants/:pid/leave", handler.LeaveRoom)
	}

	r.GET("/ws", wsHandler.ServeWS)

	return r
}
