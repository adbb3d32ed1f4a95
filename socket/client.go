package socket

import (
	"encoding/json"
	"net/http"
	"time"

	"vibesnap/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 2 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Tabs are opened from the static front-end origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWs upgrades the request and joins the caller's workspace room.
// ?mode=viewer opens a read-only tab.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	mode := ModeEditor
	if r.URL.Query().Get("mode") == ModeViewer {
		mode = ModeViewer
	}

	client := &Client{
		ID:     uuid.New().String(),
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Mode:   mode,
		Send:   make(chan []byte, 256),
	}

	select {
	case client.Hub.Register <- client:
	case <-hub.Done():
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.Unregister <- c:
		case <-c.Hub.Done():
		}
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)

	for {
		_, rawMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(rawMessage, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message: %v", err)
			continue
		}

		// Server-authoritative fields.
		msg.UserID = c.UserID
		msg.origin = c

		switch msg.Type {
		case DraftType:
			if c.Mode != ModeEditor {
				logger.Sugar.Warnf("Permission denied: viewer tab %s of %s tried to edit the draft", c.ID, c.UserID)
				continue
			}
		default:
			// PREVIEW and METRICS only come from the server.
			logger.Sugar.Warnf("Ignoring %q message from client %s", msg.Type, c.ID)
			continue
		}

		select {
		case c.Hub.Broadcast <- msg:
		case <-c.Hub.Done():
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.Hub.Done():
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}
