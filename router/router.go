package router

import (
	"net/http"

	"vibesnap/config"
	prototypeHandler "vibesnap/internal/prototype"
	"vibesnap/internal/prototype/repository"
	"vibesnap/internal/prototype/service"
	"vibesnap/middleware"
	"vibesnap/pkg/sharetoken"
	"vibesnap/socket"
	"vibesnap/store"
)

func Setup(kv store.KV, hub *socket.Hub, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.Auth(cfg.JWTSecret)

	// WebSocket
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r, middleware.UserID(r.Context()))
	})
	mux.Handle("/ws", auth(wsHandler))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	// REST API
	repo := repository.NewPrototypeRepository(kv)
	svc := service.NewPrototypeService(repo, hub, sharetoken.Codec{MaxLen: cfg.ShareTokenMaxLen}, cfg.PublicBaseURL)
	h := prototypeHandler.NewPrototypeHandler(svc)

	mux.Handle("/api/draft", auth(http.HandlerFunc(h.GetDraft)))
	mux.Handle("/api/draft/save", auth(http.HandlerFunc(h.SaveDraft)))
	mux.Handle("/api/draft/starter", auth(http.HandlerFunc(h.Starter)))
	mux.Handle("/api/draft/clear", auth(http.HandlerFunc(h.ClearDraft)))
	mux.Handle("/api/draft/download", auth(http.HandlerFunc(h.DownloadDraft)))
	mux.Handle("/api/launch", auth(http.HandlerFunc(h.Launch)))
	mux.Handle("/api/preview", auth(http.HandlerFunc(h.Preview)))
	mux.Handle("/api/share/create", auth(http.HandlerFunc(h.CreateShare)))
	mux.Handle("/api/share/open", auth(http.HandlerFunc(h.OpenShare)))
	mux.Handle("/api/share/feedback-prompt", auth(http.HandlerFunc(h.FeedbackPrompt)))
	mux.Handle("/api/feedback/add", auth(http.HandlerFunc(h.AddFeedback)))
	mux.Handle("/api/feedback", auth(http.HandlerFunc(h.GetFeedback)))
	mux.Handle("/api/feedback/export", auth(http.HandlerFunc(h.ExportFeedback)))
	mux.Handle("/api/metrics", auth(http.HandlerFunc(h.GetMetrics)))
	mux.Handle("/api/metrics/view", auth(http.HandlerFunc(h.RecordView)))
	mux.Handle("/api/metrics/reset", auth(http.HandlerFunc(h.ResetMetrics)))
	mux.Handle("/api/prompt/build", auth(http.HandlerFunc(h.BuildPrompt)))
	mux.Handle("/api/import/assemble", auth(http.HandlerFunc(h.AssembleImport)))
	mux.Handle("/api/import/use", auth(http.HandlerFunc(h.UseImport)))

	return middleware.CORSMiddleware(mux)
}
