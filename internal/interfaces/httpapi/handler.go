package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/scouting-sync/internal/platform/logging"
	"github.com/riskibarqy/scouting-sync/internal/usecase"
)

// SyncRunner is the part of usecase.SyncService the HTTP layer drives.
type SyncRunner interface {
	RunSync(ctx context.Context, input usecase.RunInput) (usecase.RunSummary, error)
	Domains() []usecase.DomainSpec
}

type Handler struct {
	syncRunner     SyncRunner
	defaultDomains []string
	logger         *logging.Logger
	validator      *validator.Validate
	// runMu allows one sync run at a time per process.
	runMu          sync.Mutex
}

// NewHandler wires the sync runner; defaultDomains applies when a request names no domains.
func NewHandler(syncRunner SyncRunner, defaultDomains []string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		syncRunner:     syncRunner,
		defaultDomains: append([]string(nil), defaultDomains...),
		logger:         logger,
		validator:      validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}
