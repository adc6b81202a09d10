package api

import (
	"fmt"
	"net/http"

	_ "github.com/rohits-web03/dispatch/docs"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/rohits-web03/dispatch/internal/api/handlers"
	"github.com/rohits-web03/dispatch/internal/api/middleware"
	"github.com/rohits-web03/dispatch/internal/metrics"
	"github.com/rs/cors"
)

// SetupRouter wires every route. A nil limiter disables sign-in throttling.
func SetupRouter(h *handlers.Handler, corsOptions cors.Options, signinLimiter *middleware.RateLimiter) http.Handler {
	mainMux := http.NewServeMux()
	c := cors.New(corsOptions)

	// ---------- PUBLIC ROUTES ----------
	mainMux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	mainMux.Handle("GET /metrics", metrics.Handler())
	mainMux.HandleFunc("/docs/", httpSwagger.WrapHandler)

	signin := h.Signin
	if signinLimiter != nil {
		signin = signinLimiter.Limit(signin)
	}

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /signup", h.Signup)
	apiMux.HandleFunc("POST /signin", signin)
	apiMux.HandleFunc("GET /auth/google/login", h.GoogleLogin)
	apiMux.HandleFunc("GET /auth/google/callback", h.GoogleCallback)

	apiMux.HandleFunc("GET /recipients", h.ListRecipients)
	apiMux.HandleFunc("GET /recipients/{id}", h.GetRecipient)

	// ---------- SIGNED-IN ROUTES ----------
	user := middleware.RequireUser
	apiMux.HandleFunc("POST /signout", user(h.Signout))
	apiMux.HandleFunc("GET /session", user(h.Session))
	apiMux.HandleFunc("PUT /users/me", user(h.UpdateMe))

	apiMux.HandleFunc("POST /recipients/{id}/draft", user(h.AddRecipientToDraft))

	apiMux.HandleFunc("POST /transfers/draft", user(h.CreateDraft))
	apiMux.HandleFunc("GET /transfers", user(h.ListTransfers))
	apiMux.HandleFunc("GET /transfers/{id}", user(h.GetTransfer))
	apiMux.HandleFunc("PUT /transfers/{id}", user(h.UploadTransferFile))
	apiMux.HandleFunc("DELETE /transfers/{id}", user(h.DeleteTransfer))
	apiMux.HandleFunc("GET /transfers/{id}/file", user(h.DownloadTransferFile))
	apiMux.HandleFunc("PUT /transfers/{id}/form", user(h.FormTransfer))
	apiMux.HandleFunc("GET /transfers/{id}/recipients/{recipientID}", user(h.GetTransferRecipient))
	apiMux.HandleFunc("PUT /transfers/{id}/recipients/{recipientID}", user(h.UpdateTransferRecipient))
	apiMux.HandleFunc("DELETE /transfers/{id}/recipients/{recipientID}", user(h.RemoveTransferRecipient))

	// ---------- MODERATOR ROUTES ----------
	moderator := middleware.RequireModerator
	apiMux.HandleFunc("POST /recipients", moderator(h.CreateRecipient))
	apiMux.HandleFunc("PUT /recipients/{id}", moderator(h.UpdateRecipient))
	apiMux.HandleFunc("DELETE /recipients/{id}", moderator(h.DeleteRecipient))
	apiMux.HandleFunc("POST /recipients/{id}/avatar", moderator(h.UploadRecipientAvatar))
	apiMux.HandleFunc("PUT /transfers/{id}/complete", moderator(h.CompleteTransfer))

	mainMux.Handle("/api/v1/",
		http.StripPrefix(
			"/api/v1",
			middleware.Authenticate(h.Sessions, h.Identity, h.Log)(apiMux),
		),
	)

	h.Log.Info("Router initialized")
	handler := c.Handler(mainMux)
	handler = metrics.InstrumentHandler(handler)
	handler = middleware.Logger(h.Log)(handler)
	return handler
}
