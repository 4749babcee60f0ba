package controllers

import (
	"net/http"
	"time"

	"go-careerdesk/entitlement"
	"go-careerdesk/web/db"
	"go-careerdesk/web/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Tokens are checked before the upgrade, so any origin may connect.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type streamMessage struct {
	Type        string              `json:"type"`
	Version     int64               `json:"version"`
	Entitlement *entitlementView    `json:"entitlement,omitempty"`
	Change      *entitlement.Change `json:"change,omitempty"`
}

// EntitlementStream pushes the caller's record on connect and after every change.
func (h *Handler) EntitlementStream(c *gin.Context) {
	actor, rec, ok := h.current(c)
	if !ok {
		return
	}
	changes, cancel := h.Hub.Subscribe(actor.UserID, 8)
	defer cancel()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Debug().Err(err).Str("user_id", actor.UserID).Msg("WebSocket upgrade failed")
		return
	}
	v := h.view(rec)
	pump(conn, streamMessage{Type: "snapshot", Version: rec.Version, Entitlement: &v}, changes, func(ch entitlement.Change) streamMessage {
		v := h.view(ch.Entitlement)
		return streamMessage{Type: "update", Version: ch.Version, Entitlement: &v}
	})
}

// AdminStream pushes every entitlement change to the admin console.
func (h *Handler) AdminStream(c *gin.Context) {
	admin := middleware.ActorFrom(c)
	changes, cancel := h.Hub.Subscribe("", 64)
	defer cancel()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Debug().Err(err).Str("user_id", admin.UserID).Msg("WebSocket upgrade failed")
		return
	}
	pump(conn, streamMessage{Type: "hello"}, changes, func(ch entitlement.Change) streamMessage {
		ch.Entitlement = redact(ch.Entitlement)
		return streamMessage{Type: "change", Version: ch.Version, Change: &ch}
	})
}

func redact(rec db.Entitlement) db.Entitlement {
	rec.PaymentProofURL = ""
	return rec
}

// pump writes first, then every change, until the client goes away. The read
// loop only exists to process control frames.
func pump(conn *websocket.Conn, first streamMessage, changes <-chan entitlement.Change, render func(entitlement.Change) streamMessage) {
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug().Err(err).Msg("WebSocket read error")
				}
				return
			}
		}
	}()

	write := func(msg streamMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg) == nil
	}
	if !write(first) {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case ch, ok := <-changes:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			if !write(render(ch)) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
