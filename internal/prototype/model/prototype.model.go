package model

import "vibesnap/store"

const (
	StatusRestored   = "Draft restored"
	StatusSaved      = "Saved locally"
	StatusNothing    = "Nothing saved"
	DefaultSentiment = "useful"

	MetricViews    = "views"
	MetricLaunches = "launches"
	MetricFeedback = "feedback"
)

type DraftRequest struct {
	HTML string `json:"html"`
}

type DraftResponse struct {
	HTML   string `json:"html"`
	Status string `json:"status"`
}

type LaunchRequest struct {
	HTML string `json:"html"`
}

type LaunchResponse struct {
	HTML     string              `json:"html"`
	Launches int                 `json:"launches"`
	Metrics  store.MetricsRecord `json:"metrics"`
}

type ShareRequest struct {
	HTML string `json:"html"`
}

type ShareResponse struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

type OpenShareRequest struct {
	// Ref is a bare token, a "#share=..." fragment or a full share URL.
	Ref string `json:"ref"`
}

type OpenShareResponse struct {
	URL       string `json:"url"`
	HTML      string `json:"html"`
	Version   int    `json:"version"`
	CreatedAt int64  `json:"createdAt"`
}

type FeedbackRequest struct {
	Sentiment string `json:"sentiment"`
	Text      string `json:"text"`
}

type FeedbackListResponse struct {
	Entries []store.FeedbackEntry `json:"entries"`
	Summary string                `json:"summary"`
}

type MetricsResponse struct {
	store.MetricsRecord
	Counted bool `json:"counted,omitempty"`
}

type PromptRequest struct {
	Idea     string `json:"idea"`
	Audience string `json:"audience"`
	Goal     string `json:"goal"`
	Screens  string `json:"screens"`
	Must     string `json:"must"`
	Data     string `json:"data"`
	Style    string `json:"style"`
	Notes    string `json:"notes"`
}

type PromptResponse struct {
	Prompt string `json:"prompt"`
}

// ImportFile is one uploaded file, already read as text.
type ImportFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ImportRequest holds the parts of an import: a standalone .html file and/or
// separate html, css and js files.
type ImportRequest struct {
	Single string `json:"single"`
	HTML   string `json:"html"`
	CSS    string `json:"css"`
	JS     string `json:"js"`
}

type ImportStatus struct {
	Single bool `json:"single"`
	HTML   bool `json:"html"`
	CSS    bool `json:"css"`
	JS     bool `json:"js"`
}

type ImportResponse struct {
	Assembled string       `json:"assembled"`
	Status    ImportStatus `json:"status"`
}
