package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"vibesnap/internal/prototype/model"
	"vibesnap/pkg/logger"
	"vibesnap/store"
)

var errAlreadyCounted = errors.New("session already counted")

// PrototypeRepository maps the workspace records onto the flat key-value
// store. Missing or corrupt JSON reads as the empty value, like the browser
// tool's safeJsonParse fallback.
type PrototypeRepository struct {
	KV store.KV
}

func NewPrototypeRepository(kv store.KV) *PrototypeRepository {
	return &PrototypeRepository{KV: kv}
}

func (r *PrototypeRepository) getString(ctx context.Context, key string) (string, error) {
	v, err := r.KV.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to read %s: %v", key, err)
	}
	return v, err
}

func (r *PrototypeRepository) LoadDraft(ctx context.Context, userID string) (string, error) {
	return r.getString(ctx, store.Key(userID, store.DraftHTML))
}

// SaveDraft stores the trimmed draft; a blank draft removes the entry.
func (r *PrototypeRepository) SaveDraft(ctx context.Context, userID, html string) error {
	html = strings.TrimSpace(html)
	if html == "" {
		return r.ClearDraft(ctx, userID)
	}
	err := r.KV.Set(ctx, store.Key(userID, store.DraftHTML), html)
	if err != nil {
		logger.Sugar.Errorf("Failed to save draft for %s: %v", userID, err)
	}
	return err
}

func (r *PrototypeRepository) ClearDraft(ctx context.Context, userID string) error {
	err := r.KV.Delete(ctx, store.Key(userID, store.DraftHTML))
	if err != nil {
		logger.Sugar.Errorf("Failed to clear draft for %s: %v", userID, err)
	}
	return err
}

func (r *PrototypeRepository) LoadPreview(ctx context.Context, userID string) (string, error) {
	return r.getString(ctx, store.Key(userID, store.PreviewHTML))
}

func (r *PrototypeRepository) SavePreview(ctx context.Context, userID, html string) error {
	err := r.KV.Set(ctx, store.Key(userID, store.PreviewHTML), html)
	if err != nil {
		logger.Sugar.Errorf("Failed to save preview for %s: %v", userID, err)
	}
	return err
}

func (r *PrototypeRepository) GetMetrics(ctx context.Context, userID string) (store.MetricsRecord, error) {
	raw, err := r.getString(ctx, store.Key(userID, store.Metrics))
	if err != nil {
		return store.MetricsRecord{}, err
	}
	return parseMetrics(raw), nil
}

// BumpMetric adds amount to one counter and returns the updated record.
func (r *PrototypeRepository) BumpMetric(ctx context.Context, userID, name string, amount int) (store.MetricsRecord, error) {
	var out store.MetricsRecord
	err := r.KV.Update(ctx, store.Key(userID, store.Metrics), func(cur string, _ bool) (string, error) {
		m := parseMetrics(cur)
		switch name {
		case model.MetricViews:
			m.Views += amount
		case model.MetricLaunches:
			m.Launches += amount
		case model.MetricFeedback:
			m.Feedback += amount
		default:
			return "", fmt.Errorf("unknown metric %q", name)
		}
		out = m
		b, err := json.Marshal(m)
		return string(b), err
	})
	if err != nil {
		logger.Sugar.Errorf("Failed to bump %s for %s: %v", name, userID, err)
	}
	return out, err
}

func (r *PrototypeRepository) ResetMetrics(ctx context.Context, userID string) error {
	b, _ := json.Marshal(store.MetricsRecord{})
	err := r.KV.Set(ctx, store.Key(userID, store.Metrics), string(b))
	if err != nil {
		logger.Sugar.Errorf("Failed to reset metrics for %s: %v", userID, err)
	}
	return err
}

// MarkSessionViewed records sessionID and reports whether this was its first
// view.
func (r *PrototypeRepository) MarkSessionViewed(ctx context.Context, userID, sessionID string) (bool, error) {
	err := r.KV.Update(ctx, store.SessionKey(userID, sessionID), func(cur string, found bool) (string, error) {
		if found {
			return cur, errAlreadyCounted
		}
		return "1", nil
	})
	if errors.Is(err, errAlreadyCounted) {
		return false, nil
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to mark session %s for %s: %v", sessionID, userID, err)
		return false, err
	}
	return true, nil
}

// ListFeedback returns the saved entries, newest first.
func (r *PrototypeRepository) ListFeedback(ctx context.Context, userID string) ([]store.FeedbackEntry, error) {
	raw, err := r.getString(ctx, store.Key(userID, store.Feedback))
	if err != nil {
		return nil, err
	}
	return parseFeedback(raw), nil
}

// AddFeedback prepends entry and returns the new list length.
func (r *PrototypeRepository) AddFeedback(ctx context.Context, userID string, entry store.FeedbackEntry) (int, error) {
	var n int
	err := r.KV.Update(ctx, store.Key(userID, store.Feedback), func(cur string, _ bool) (string, error) {
		list := append([]store.FeedbackEntry{entry}, parseFeedback(cur)...)
		n = len(list)
		b, err := json.Marshal(list)
		return string(b), err
	})
	if err != nil {
		logger.Sugar.Errorf("Failed to add feedback for %s: %v", userID, err)
	}
	return n, err
}

func parseMetrics(raw string) store.MetricsRecord {
	var m store.MetricsRecord
	if raw == "" {
		return m
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		logger.Sugar.Warnf("Discarding corrupt metrics record: %v", err)
		return store.MetricsRecord{}
	}
	return m
}

func parseFeedback(raw string) []store.FeedbackEntry {
	list := []store.FeedbackEntry{}
	if raw == "" {
		return list
	}
	if err := json.Unmarshal([]byte(raw), &list); err != nil || list == nil {
		logger.Sugar.Warnf("Discarding corrupt feedback list: %v", err)
		return []store.FeedbackEntry{}
	}
	return list
}
