package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"vibesnap/pkg/logger"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	DraftType          = "DRAFT"           // Editor content changed
	PreviewType        = "PREVIEW"         // A prototype was launched
	MetricsType        = "METRICS"         // Usage counters changed
	PresenceUpdateType = "PRESENCE_UPDATE" // A tab joined or left

	ModeEditor = "editor"
	ModeViewer = "viewer"
)

const flushConcurrency = 4

type WSMessage struct {
	Type    string          `json:"type"`
	UserID  string          `json:"user_id"`
	Payload json.RawMessage `json:"payload"`

	// origin is the client the message came from; nil for server publishes.
	origin *Client
}

// DocumentPayload is the payload of DRAFT and PREVIEW messages.
type DocumentPayload struct {
	HTML string `json:"html"`
}

type ClientStatus struct {
	ClientID string    `json:"client_id"`
	Mode     string    `json:"mode"`
	LastSeen time.Time `json:"last_seen"`
}

// DraftStore is where the hub loads drafts from and autosaves them to.
type DraftStore interface {
	LoadDraft(ctx context.Context, userID string) (string, error)
	SaveDraft(ctx context.Context, userID, html string) error
	LoadPreview(ctx context.Context, userID string) (string, error)
}

// Hub keeps one room per user: every open tab of that user's workspace.
type Hub struct {
	Rooms      map[string]map[*Client]bool
	Broadcast  chan WSMessage // from client read pumps
	Register   chan *Client
	Unregister chan *Client
	publish    chan WSMessage // from Publish
	done       chan struct{}  // closed when Run returns
	store      DraftStore

	mu           sync.Mutex
	DraftCache   map[string]string
	PreviewCache map[string]string
	DirtyDrafts  map[string]bool
	Presence     map[string]map[string]ClientStatus // userID -> clientID -> status
}

type Client struct {
	ID     string
	Hub    *Hub
	Conn   *websocket.Conn
	UserID string
	Mode   string
	Send   chan []byte
}

func NewHub(store DraftStore) *Hub {
	return &Hub{
		Rooms:        make(map[string]map[*Client]bool),
		Broadcast:    make(chan WSMessage),
		Register:     make(chan *Client),
		Unregister:   make(chan *Client),
		publish:      make(chan WSMessage, 64),
		done:         make(chan struct{}),
		store:        store,
		DraftCache:   make(map[string]string),
		PreviewCache: make(map[string]string),
		DirtyDrafts:  make(map[string]bool),
		Presence:     make(map[string]map[string]ClientStatus),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.Register:
			h.register(ctx, client)
		case client := <-h.Unregister:
			h.unregister(ctx, client)
		case msg := <-h.Broadcast:
			h.broadcast(ctx, msg)
		case msg := <-h.publish:
			h.broadcast(ctx, msg)
		}
	}
}

// Done is closed once Run has returned and the hub accepts no more clients.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Publish queues a server-side message for every open tab of userID. It
// never blocks: when the queue is full the message is dropped.
func (h *Hub) Publish(userID, msgType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling %s payload: %v", msgType, err)
		return
	}
	select {
	case h.publish <- WSMessage{Type: msgType, UserID: userID, Payload: raw}:
	default:
		logger.Sugar.Warnf("Broadcast queue full, dropping %s for user %s", msgType, userID)
	}
}

func (h *Hub) register(ctx context.Context, client *Client) {
	h.mu.Lock()
	if h.Rooms[client.UserID] == nil {
		h.Rooms[client.UserID] = make(map[*Client]bool)
		h.Presence[client.UserID] = make(map[string]ClientStatus)

		draft, err := h.store.LoadDraft(ctx, client.UserID)
		if err != nil {
			logger.Sugar.Errorf("Failed to load draft for %s: %v", client.UserID, err)
		}
		h.DraftCache[client.UserID] = draft

		preview, err := h.store.LoadPreview(ctx, client.UserID)
		if err != nil {
			logger.Sugar.Errorf("Failed to load preview for %s: %v", client.UserID, err)
		}
		h.PreviewCache[client.UserID] = preview
	}
	h.Rooms[client.UserID][client] = true
	h.Presence[client.UserID][client.ID] = ClientStatus{ClientID: client.ID, Mode: client.Mode, LastSeen: time.Now()}

	draft := h.DraftCache[client.UserID]
	preview := h.PreviewCache[client.UserID]
	h.mu.Unlock()

	client.Send <- encode(DraftType, client.UserID, DocumentPayload{HTML: draft})
	if preview != "" {
		client.Send <- encode(PreviewType, client.UserID, DocumentPayload{HTML: preview})
	}

	h.broadcastPresenceUpdate(client.UserID)
}

func (h *Hub) unregister(ctx context.Context, client *Client) {
	h.mu.Lock()
	userID := client.UserID
	if _, ok := h.Rooms[userID][client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.Rooms[userID], client)
	delete(h.Presence[userID], client.ID)
	close(client.Send)

	remaining := len(h.Rooms[userID])
	if remaining == 0 {
		if h.DirtyDrafts[userID] {
			if err := h.store.SaveDraft(ctx, userID, h.DraftCache[userID]); err != nil {
				logger.Sugar.Errorf("Failed to save draft of %s on close: %v", userID, err)
			}
		}
		delete(h.Rooms, userID)
		delete(h.Presence, userID)
		delete(h.DraftCache, userID)
		delete(h.PreviewCache, userID)
		delete(h.DirtyDrafts, userID)
		logger.Sugar.Infof("Closed empty workspace room: %s", userID)
	}
	h.mu.Unlock()

	if remaining > 0 {
		h.broadcastPresenceUpdate(userID)
	}
}

func (h *Hub) broadcast(ctx context.Context, msg WSMessage) {
	h.mu.Lock()
	room, open := h.Rooms[msg.UserID]
	if !open {
		h.mu.Unlock()
		return
	}

	switch msg.Type {
	case DraftType, PreviewType:
		var doc DocumentPayload
		if err := json.Unmarshal(msg.Payload, &doc); err != nil {
			logger.Sugar.Warnf("Dropping malformed %s message for %s: %v", msg.Type, msg.UserID, err)
			h.mu.Unlock()
			return
		}
		if msg.Type == PreviewType {
			h.PreviewCache[msg.UserID] = doc.HTML
			break
		}
		h.DraftCache[msg.UserID] = doc.HTML
		// Server publishes were already persisted by the caller.
		if msg.origin != nil {
			h.DirtyDrafts[msg.UserID] = true
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
		h.mu.Unlock()
		return
	}

	recipients := make([]*Client, 0, len(room))
	for client := range room {
		if client != msg.origin {
			recipients = append(recipients, client)
		}
	}
	h.mu.Unlock()

	var lagging []*Client
	for _, client := range recipients {
		select {
		case client.Send <- payload:
		default:
			logger.Sugar.Warnf("Client %s's send buffer is full. Unregistering.", client.ID)
			lagging = append(lagging, client)
		}
	}
	for _, client := range lagging {
		h.unregister(ctx, client)
	}
}

func (h *Hub) broadcastPresenceUpdate(userID string) {
	var statuses []ClientStatus
	var clients []*Client

	h.mu.Lock()
	if presence, ok := h.Presence[userID]; ok {
		statuses = make([]ClientStatus, 0, len(presence))
		for _, status := range presence {
			statuses = append(statuses, status)
		}
		clients = make([]*Client, 0, len(h.Rooms[userID]))
		for client := range h.Rooms[userID] {
			clients = append(clients, client)
		}
	}
	h.mu.Unlock()

	if len(clients) == 0 {
		return
	}

	msg := encode(PresenceUpdateType, userID, statuses)
	for _, client := range clients {
		select {
		case client.Send <- msg:
		default:
			logger.Sugar.Warnf("Client %s's send buffer was full during presence update.", client.ID)
		}
	}
}

// AutosaveWorker flushes dirty drafts every interval and once more when ctx
// is cancelled.
func (h *Hub) AutosaveWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// The parent context is gone; give the final flush its own deadline.
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := h.FlushDirty(flushCtx); err != nil {
				logger.Sugar.Errorf("Final autosave failed: %v", err)
			}
			cancel()
			return
		case <-ticker.C:
			if err := h.FlushDirty(ctx); err != nil {
				logger.Sugar.Errorf("Autosave failed: %v", err)
			}
		}
	}
}

// FlushDirty writes every dirty draft to the store. Drafts that fail stay
// dirty and are retried on the next call.
func (h *Hub) FlushDirty(ctx context.Context) error {
	toSave := make(map[string]string)
	h.mu.Lock()
	for userID, dirty := range h.DirtyDrafts {
		if dirty {
			toSave[userID] = h.DraftCache[userID]
		}
	}
	h.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(flushConcurrency)
	for userID, html := range toSave {
		userID, html := userID, html
		g.Go(func() error {
			if err := h.store.SaveDraft(ctx, userID, html); err != nil {
				logger.Sugar.Errorf("Failed to autosave draft of %s: %v", userID, err)
				return err
			}

			h.mu.Lock()
			// Only mark clean if nothing changed while we were saving.
			if h.DraftCache[userID] == html {
				h.DirtyDrafts[userID] = false
			}
			h.mu.Unlock()

			logger.Sugar.Infof("Auto-saved draft of %s", userID)
			return nil
		})
	}
	return g.Wait()
}

func encode(msgType, userID string, payload any) []byte {
	raw, _ := json.Marshal(payload)
	out, _ := json.Marshal(WSMessage{Type: msgType, UserID: userID, Payload: raw})
	return out
}
