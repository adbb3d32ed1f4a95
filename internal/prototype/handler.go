package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"vibesnap/internal/prototype/model"
	"vibesnap/internal/prototype/service"
	"vibesnap/middleware"
	"vibesnap/pkg/logger"
	"vibesnap/pkg/sharetoken"
)

const (
	maxBodySize   = 4 << 20
	maxImportSize = 8 << 20

	// The preview is rendered like an iframe with sandbox="allow-scripts ...".
	previewCSP = "sandbox allow-scripts allow-forms allow-modals allow-popups"
)

type PrototypeHandler struct {
	Service *service.PrototypeService
}

func NewPrototypeHandler(service *service.PrototypeService) *PrototypeHandler {
	return &PrototypeHandler{Service: service}
}

func (h *PrototypeHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp, err := h.Service.LoadDraft(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, "load draft", err)
		return
	}
	writeJSON(w, resp)
}

func (h *PrototypeHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.DraftRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.Service.SaveDraft(r.Context(), middleware.UserID(r.Context()), req.HTML)
	if err != nil {
		writeError(w, "save draft", err)
		return
	}
	writeJSON(w, resp)
}

func (h *PrototypeHandler) ClearDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.Service.ClearDraft(r.Context(), middleware.UserID(r.Context())); err != nil {
		writeError(w, "clear draft", err)
		return
	}
	writeJSON(w, model.DraftResponse{Status: model.StatusNothing})
}

func (h *PrototypeHandler) Starter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp, err := h.Service.Starter(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, "paste starter", err)
		return
	}
	writeJSON(w, resp)
}

func (h *PrototypeHandler) DownloadDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	doc, err := h.Service.Download(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, "download draft", err)
		return
	}
	writeAttachment(w, "prototype.html", "text/html; charset=utf-8", []byte(doc))
}

func (h *PrototypeHandler) Launch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.LaunchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.Service.Launch(r.Context(), middleware.UserID(r.Context()), req.HTML)
	if err != nil {
		writeError(w, "launch", err)
		return
	}
	writeJSON(w, resp)
}

// Preview serves the last launched document under a sandbox CSP.
func (h *PrototypeHandler) Preview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	doc, err := h.Service.Preview(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, "preview", err)
		return
	}
	w.Header().Set("Content-Security-Policy", previewCSP)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(doc))
}

func (h *PrototypeHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.ShareRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.Service.CreateShare(r.Context(), middleware.UserID(r.Context()), req.HTML)
	if err != nil {
		writeError(w, "create share", err)
		return
	}
	writeJSON(w, resp)
}

// OpenShare replaces the draft and launches it, so it is POST only.
func (h *PrototypeHandler) OpenShare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.OpenShareRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.Service.OpenShare(r.Context(), middleware.UserID(r.Context()), req.Ref)
	if err != nil {
		writeError(w, "open share", err)
		return
	}
	writeJSON(w, resp)
}

func (h *PrototypeHandler) FeedbackPrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(h.Service.FeedbackPrompt()))
}

func (h *PrototypeHandler) AddFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.FeedbackRequest
	if !decodeBody(w, r, &req) {
		return
	}

	entry, err := h.Service.AddFeedback(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		writeError(w, "add feedback", err)
		return
	}
	writeJSON(w, entry)
}

func (h *PrototypeHandler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp, err := h.Service.ListFeedback(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, "list feedback", err)
		return
	}
	writeJSON(w, resp)
}

func (h *PrototypeHandler) ExportFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	out, err := h.Service.ExportFeedback(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, "export feedback", err)
		return
	}
	writeAttachment(w, "vibesnap-feedback.json", "application/json", out)
}

func (h *PrototypeHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m, err := h.Service.Metrics(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, "metrics", err)
		return
	}
	writeJSON(w, m)
}

// RecordView counts one view per X-Session-ID.
func (h *PrototypeHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp, err := h.Service.RecordView(r.Context(), middleware.UserID(r.Context()), r.Header.Get("X-Session-ID"))
	if err != nil {
		writeError(w, "record view", err)
		return
	}
	writeJSON(w, resp)
}

func (h *PrototypeHandler) ResetMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.Service.ResetMetrics(r.Context(), middleware.UserID(r.Context())); err != nil {
		writeError(w, "reset metrics", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Analytics reset"))
}

func (h *PrototypeHandler) BuildPrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.PromptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, model.PromptResponse{Prompt: h.Service.BuildPrompt(req)})
}

// AssembleImport takes either a JSON ImportRequest or a multipart upload
// with a "single" file and/or "files". ?download=1 returns assembled.html.
func (h *PrototypeHandler) AssembleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, ok := h.readImport(w, r)
	if !ok {
		return
	}

	resp := h.Service.AssembleImport(req)
	if r.URL.Query().Get("download") == "1" {
		if strings.TrimSpace(resp.Assembled) == "" {
			http.Error(w, "Nothing to download", http.StatusBadRequest)
			return
		}
		writeAttachment(w, "assembled.html", "text/html; charset=utf-8", []byte(resp.Assembled))
		return
	}
	writeJSON(w, resp)
}

// UseImport assembles the upload and loads it into the draft.
func (h *PrototypeHandler) UseImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, ok := h.readImport(w, r)
	if !ok {
		return
	}

	resp, err := h.Service.UseImport(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		writeError(w, "use import", err)
		return
	}
	writeJSON(w, resp)
}

func (h *PrototypeHandler) readImport(w http.ResponseWriter, r *http.Request) (model.ImportRequest, bool) {
	var req model.ImportRequest
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return req, decodeBody(w, r, &req)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		http.Error(w, "Invalid upload", http.StatusBadRequest)
		return req, false
	}

	var single *model.ImportFile
	if headers := r.MultipartForm.File["single"]; len(headers) > 0 {
		f, err := readUpload(headers[0])
		if err != nil {
			http.Error(w, "Invalid upload", http.StatusBadRequest)
			return req, false
		}
		single = &f
	}

	var files []model.ImportFile
	for _, fh := range r.MultipartForm.File["files"] {
		f, err := readUpload(fh)
		if err != nil {
			http.Error(w, "Invalid upload", http.StatusBadRequest)
			return req, false
		}
		files = append(files, f)
	}

	req, err := h.Service.ClassifyImport(single, files)
	if err != nil {
		writeError(w, "classify import", err)
		return req, false
	}
	return req, true
}

func readUpload(fh *multipart.FileHeader) (model.ImportFile, error) {
	f, err := fh.Open()
	if err != nil {
		return model.ImportFile{}, err
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return model.ImportFile{}, err
	}
	return model.ImportFile{Name: fh.Filename, Content: cleanUpload(b)}, nil
}

// cleanUpload turns raw file bytes into text every store accepts: invalid
// UTF-8 becomes U+FFFD and NUL bytes are dropped.
func cleanUpload(b []byte) string {
	return strings.ReplaceAll(strings.ToValidUTF8(string(b), "\uFFFD"), "\x00", "")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeAttachment(w http.ResponseWriter, filename, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(body)
}

// writeError maps service errors onto status codes. User-facing failures
// keep their message; anything else is logged and reported as a 500.
func writeError(w http.ResponseWriter, op string, err error) {
	var tooLarge *sharetoken.TooLargeError
	switch {
	case errors.As(err, &tooLarge):
		http.Error(w, fmt.Sprintf("Prototype too large to share (%d characters, limit %d)", tooLarge.Length, tooLarge.Limit),
			http.StatusRequestEntityTooLarge)
	case errors.Is(err, service.ErrNoShare), errors.Is(err, service.ErrNoPreview):
		http.Error(w, capitalize(err.Error()), http.StatusNotFound)
	case errors.Is(err, service.ErrEmptyInput),
		errors.Is(err, sharetoken.ErrInvalidUTF8),
		errors.Is(err, service.ErrNothingToDownload),
		errors.Is(err, service.ErrEmptyFeedback),
		errors.Is(err, service.ErrNoFeedback),
		errors.Is(err, service.ErrNothingToLoad),
		errors.Is(err, service.ErrMissingSession),
		errors.Is(err, service.ErrNotHTMLFile):
		http.Error(w, capitalize(err.Error()), http.StatusBadRequest)
	default:
		logger.Sugar.Errorf("Handler: %s failed: %v", op, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
