package controller

import (
	"net/http"

	"octvision/util/common"
	"octvision/web/session"
	ws "octvision/web/websocket"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocketController serves the upload-progress socket.
type WebSocketController struct {
	BaseController

	hub *ws.Hub
}

// NewWebSocketController creates a WebSocketController and registers its
// route behind the login check.
func NewWebSocketController(g *gin.RouterGroup, hub *ws.Hub) *WebSocketController {
	w := &WebSocketController{hub: hub}
	w.initRouter(g)
	return w
}

func (w *WebSocketController) initRouter(g *gin.RouterGroup) {
	g.GET("/ws", w.checkLogin, w.handleWebSocket)
}

func (w *WebSocketController) handleWebSocket(c *gin.Context) {
	user := session.GetLoginUser(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	client := &ws.Client{
		ID:     uuid.NewString(),
		UserId: user.Id,
		Send:   make(chan []byte, 16),
	}
	w.hub.Register(client)
	defer w.hub.Unregister(client)

	go func() {
		defer common.Recover("websocket writer")
		for msg := range client.Send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	// Keep the connection open until the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}
