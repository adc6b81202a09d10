package handlers

import (
	"context"
	"time"

	"github.com/rohits-web03/dispatch/internal/services"
	"github.com/sirupsen/logrus"
)

// Presigner issues temporary download links for stored blobs.
type Presigner interface {
	PresignGet(ctx context.Context, urlOrKey string, expires time.Duration) (string, error)
}

// Handler serves the HTTP API. Google and Files are optional; their routes
// answer 404 when unset.
type Handler struct {
	Transfers  *services.TransferService
	Recipients *services.RecipientService
	Identity   *services.IdentityService
	Sessions   *services.SessionService
	Google     *services.GoogleAuth
	Files      Presigner
	Log        logrus.FieldLogger

	Production     bool
	FrontendURL    string
	MaxUploadBytes int64
}
