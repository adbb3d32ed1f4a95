package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"vibesnap/internal/prototype/model"
	"vibesnap/internal/prototype/repository"
	"vibesnap/pkg/htmldoc"
	"vibesnap/pkg/sharetoken"
	"vibesnap/socket"
	"vibesnap/store"

	"github.com/google/uuid"
)

var (
	ErrEmptyInput        = errors.New("paste HTML first")
	ErrNothingToDownload = errors.New("nothing to download")
	ErrNoPreview         = errors.New("nothing launched yet")
	ErrNoShare           = errors.New("no shared prototype found")
	ErrEmptyFeedback     = errors.New("type feedback first")
	ErrNoFeedback        = errors.New("no feedback to export")
	ErrNothingToLoad     = errors.New("nothing to load")
	ErrMissingSession    = errors.New("missing session id")
	ErrNotHTMLFile       = errors.New("please upload an .html file")
)

var shareRefRe = regexp.MustCompile(`share=([^&]+)`)

const starterHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width,initial-scale=1" />
  <title>Prototype</title>
  <style>
    body{font-family:system-ui,-apple-system,Segoe UI,Roboto,sans-serif;padding:24px}
    button{padding:10px 14px}
  </style>
</head>
<body>
  <h1>Hello prototype</h1>
  <p>Edit this file and reload preview.</p>
  <button id="btn">Click me</button>
  <script>
    document.getElementById('btn').addEventListener('click', () => alert('clicked'));
  </script>
</body>
</html>`

const feedbackPrompt = `Quick feedback request:
1) Would you use this? Why/why not?
2) What confused you or slowed you down?
3) What would you change first?`

// Broadcaster pushes a message to every open tab of a user.
type Broadcaster interface {
	Publish(userID, msgType string, payload any)
}

type PrototypeService struct {
	Repo    *repository.PrototypeRepository
	Hub     Broadcaster
	Codec   sharetoken.Codec
	BaseURL string

	Now   func() time.Time
	NewID func() string
}

func NewPrototypeService(repo *repository.PrototypeRepository, hub Broadcaster, codec sharetoken.Codec, baseURL string) *PrototypeService {
	return &PrototypeService{
		Repo:    repo,
		Hub:     hub,
		Codec:   codec,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Now:     time.Now,
		NewID:   func() string { return uuid.New().String() },
	}
}

func (s *PrototypeService) LoadDraft(ctx context.Context, userID string) (model.DraftResponse, error) {
	draft, err := s.Repo.LoadDraft(ctx, userID)
	if err != nil {
		return model.DraftResponse{}, err
	}
	if strings.TrimSpace(draft) == "" {
		return model.DraftResponse{Status: model.StatusNothing}, nil
	}
	return model.DraftResponse{HTML: draft, Status: model.StatusRestored}, nil
}

func (s *PrototypeService) SaveDraft(ctx context.Context, userID, html string) (model.DraftResponse, error) {
	html = strings.TrimSpace(html)
	if err := s.Repo.SaveDraft(ctx, userID, html); err != nil {
		return model.DraftResponse{}, err
	}
	s.Hub.Publish(userID, socket.DraftType, socket.DocumentPayload{HTML: html})
	if html == "" {
		return model.DraftResponse{Status: model.StatusNothing}, nil
	}
	return model.DraftResponse{HTML: html, Status: model.StatusSaved}, nil
}

func (s *PrototypeService) ClearDraft(ctx context.Context, userID string) error {
	if err := s.Repo.ClearDraft(ctx, userID); err != nil {
		return err
	}
	s.Hub.Publish(userID, socket.DraftType, socket.DocumentPayload{})
	return nil
}

// Starter replaces the draft with the starter page.
func (s *PrototypeService) Starter(ctx context.Context, userID string) (model.DraftResponse, error) {
	return s.SaveDraft(ctx, userID, starterHTML)
}

// Download returns the normalized draft for saving as prototype.html.
func (s *PrototypeService) Download(ctx context.Context, userID string) (string, error) {
	draft, err := s.Repo.LoadDraft(ctx, userID)
	if err != nil {
		return "", err
	}
	doc := htmldoc.Normalize(draft)
	if doc == "" {
		return "", ErrNothingToDownload
	}
	return doc, nil
}

// sourceOrDraft returns raw, or the saved draft when raw is blank.
func (s *PrototypeService) sourceOrDraft(ctx context.Context, userID, raw string) (string, error) {
	if strings.TrimSpace(raw) != "" {
		return raw, nil
	}
	return s.Repo.LoadDraft(ctx, userID)
}

// Launch normalizes raw (or the saved draft) into the preview document.
func (s *PrototypeService) Launch(ctx context.Context, userID, raw string) (model.LaunchResponse, error) {
	src, err := s.sourceOrDraft(ctx, userID, raw)
	if err != nil {
		return model.LaunchResponse{}, err
	}
	doc := htmldoc.Normalize(src)
	if doc == "" {
		return model.LaunchResponse{}, ErrEmptyInput
	}

	if err := s.Repo.SavePreview(ctx, userID, doc); err != nil {
		return model.LaunchResponse{}, err
	}
	s.Hub.Publish(userID, socket.PreviewType, socket.DocumentPayload{HTML: doc})

	m, err := s.Repo.BumpMetric(ctx, userID, model.MetricLaunches, 1)
	if err != nil {
		return model.LaunchResponse{}, err
	}
	s.Hub.Publish(userID, socket.MetricsType, m)

	return model.LaunchResponse{HTML: doc, Launches: m.Launches, Metrics: m}, nil
}

func (s *PrototypeService) Preview(ctx context.Context, userID string) (string, error) {
	doc, err := s.Repo.LoadPreview(ctx, userID)
	if err != nil {
		return "", err
	}
	if doc == "" {
		return "", ErrNoPreview
	}
	return doc, nil
}

// ShareURL is the link that carries token in its fragment.
func (s *PrototypeService) ShareURL(token string) string {
	return s.BaseURL + "/#share=" + token
}

// CreateShare encodes the normalized prototype into a share link. A
// prototype too large for a link yields a *sharetoken.TooLargeError and no
// link.
func (s *PrototypeService) CreateShare(ctx context.Context, userID, raw string) (model.ShareResponse, error) {
	src, err := s.sourceOrDraft(ctx, userID, raw)
	if err != nil {
		return model.ShareResponse{}, err
	}
	doc := htmldoc.Normalize(src)
	if doc == "" {
		return model.ShareResponse{}, ErrEmptyInput
	}

	token, err := s.Codec.Encode(sharetoken.NewRecord(doc, s.Now()))
	if err != nil {
		return model.ShareResponse{}, err
	}
	return model.ShareResponse{URL: s.ShareURL(token), Token: token}, nil
}

// ExtractShareToken pulls the token out of a share URL or fragment; anything
// without "share=" is taken as the token itself.
func ExtractShareToken(ref string) string {
	ref = strings.TrimSpace(ref)
	m := shareRefRe.FindStringSubmatch(ref)
	if m == nil {
		return ref
	}
	if tok, err := url.QueryUnescape(m[1]); err == nil {
		return tok
	}
	return m[1]
}

// OpenShare loads a shared prototype into the user's draft and launches it.
func (s *PrototypeService) OpenShare(ctx context.Context, userID, ref string) (model.OpenShareResponse, error) {
	token := ExtractShareToken(ref)
	rec, err := s.Codec.Decode(token)
	if err != nil || strings.TrimSpace(rec.HTML) == "" {
		return model.OpenShareResponse{}, ErrNoShare
	}

	if _, err := s.SaveDraft(ctx, userID, rec.HTML); err != nil {
		return model.OpenShareResponse{}, err
	}
	launched, err := s.Launch(ctx, userID, rec.HTML)
	if err != nil {
		return model.OpenShareResponse{}, err
	}

	return model.OpenShareResponse{
		URL:       s.ShareURL(token),
		HTML:      launched.HTML,
		Version:   rec.Version,
		CreatedAt: rec.CreatedAt,
	}, nil
}

// FeedbackPrompt is the text testers are asked to answer.
func (s *PrototypeService) FeedbackPrompt() string {
	return feedbackPrompt
}

func (s *PrototypeService) AddFeedback(ctx context.Context, userID string, req model.FeedbackRequest) (store.FeedbackEntry, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return store.FeedbackEntry{}, ErrEmptyFeedback
	}
	sentiment := strings.TrimSpace(req.Sentiment)
	if sentiment == "" {
		sentiment = model.DefaultSentiment
	}

	entry := store.FeedbackEntry{
		ID:        s.NewID(),
		Sentiment: sentiment,
		Text:      text,
		At:        s.Now().UnixMilli(),
	}
	if _, err := s.Repo.AddFeedback(ctx, userID, entry); err != nil {
		return store.FeedbackEntry{}, err
	}

	m, err := s.Repo.BumpMetric(ctx, userID, model.MetricFeedback, 1)
	if err != nil {
		return store.FeedbackEntry{}, err
	}
	s.Hub.Publish(userID, socket.MetricsType, m)
	return entry, nil
}

func (s *PrototypeService) ListFeedback(ctx context.Context, userID string) (model.FeedbackListResponse, error) {
	list, err := s.Repo.ListFeedback(ctx, userID)
	if err != nil {
		return model.FeedbackListResponse{}, err
	}
	return model.FeedbackListResponse{Entries: list, Summary: feedbackSummary(len(list))}, nil
}

// ExportFeedback returns the feedback list as indented JSON.
func (s *PrototypeService) ExportFeedback(ctx context.Context, userID string) ([]byte, error) {
	list, err := s.Repo.ListFeedback(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNoFeedback
	}
	return json.MarshalIndent(list, "", "  ")
}

func (s *PrototypeService) Metrics(ctx context.Context, userID string) (store.MetricsRecord, error) {
	return s.Repo.GetMetrics(ctx, userID)
}

// RecordView counts a view once per session.
func (s *PrototypeService) RecordView(ctx context.Context, userID, sessionID string) (model.MetricsResponse, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return model.MetricsResponse{}, ErrMissingSession
	}

	first, err := s.Repo.MarkSessionViewed(ctx, userID, sessionID)
	if err != nil {
		return model.MetricsResponse{}, err
	}
	if !first {
		m, err := s.Repo.GetMetrics(ctx, userID)
		return model.MetricsResponse{MetricsRecord: m}, err
	}

	m, err := s.Repo.BumpMetric(ctx, userID, model.MetricViews, 1)
	if err != nil {
		return model.MetricsResponse{}, err
	}
	s.Hub.Publish(userID, socket.MetricsType, m)
	return model.MetricsResponse{MetricsRecord: m, Counted: true}, nil
}

func (s *PrototypeService) ResetMetrics(ctx context.Context, userID string) error {
	if err := s.Repo.ResetMetrics(ctx, userID); err != nil {
		return err
	}
	s.Hub.Publish(userID, socket.MetricsType, store.MetricsRecord{})
	return nil
}

func feedbackSummary(n int) string {
	if n == 0 {
		return "No feedback yet."
	}
	return fmt.Sprintf("Saved: %d", n)
}
