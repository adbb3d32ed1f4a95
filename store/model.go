package store

import "time"

// Names of the per-user entries. Together with Key they reproduce the
// vibesnap:* layout the browser tool used.
const (
	DraftHTML     = "draft_html"
	PreviewHTML   = "preview_html"
	Feedback      = "feedback"
	Metrics       = "metrics"
	SessionViewed = "session_viewed"
)

// Key namespaces name under userID.
func Key(userID, name string) string {
	return "vibesnap:" + userID + ":" + name
}

// SessionKey marks one session of userID as already counted.
func SessionKey(userID, sessionID string) string {
	return Key(userID, SessionViewed+":"+sessionID)
}

type MetricsRecord struct {
	Views    int `json:"views"`
	Launches int `json:"launches"`
	Feedback int `json:"feedback"`
}

type FeedbackEntry struct {
	ID        string `json:"id"`
	Sentiment string `json:"sentiment"`
	Text      string `json:"text"`
	At        int64  `json:"at"` // Unix milliseconds
}

func (f FeedbackEntry) Time() time.Time {
	return time.UnixMilli(f.At)
}
