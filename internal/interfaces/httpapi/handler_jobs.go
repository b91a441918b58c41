package httpapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/scouting-sync/internal/usecase"
)

const maxSyncRequestBytes = 64 << 10

type syncJobRequest struct {
	Domains     []string `json:"domains" validate:"omitempty,max=16,dive,required,max=64"`
	Season      string   `json:"season" validate:"omitempty,max=64"`
	Competition string   `json:"competition" validate:"omitempty,max=128"`
	DryRun      bool     `json:"dry_run"`
}

type syncRunDTO struct {
	usecase.RunSummary
	Totals usecase.DomainCounts `json:"totals"`
}

type syncDomainDTO struct {
	Name        string   `json:"name"`
	Endpoint    string   `json:"endpoint"`
	Paged       bool     `json:"paged"`
	Table       string   `json:"table"`
	ConflictKey []string `json:"conflict_key"`
}

func (h *Handler) RunSyncJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunSyncJob")
	defer span.End()

	if h.syncRunner == nil {
		writeError(ctx, w, fmt.Errorf("%w: sync service is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	req, err := decodeSyncJobRequest(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	if !h.runMu.TryLock() {
		writeError(ctx, w, fmt.Errorf("%w: a sync run is already in progress", usecase.ErrConflict))
		return
	}
	defer h.runMu.Unlock()

	domains := req.Domains
	if len(domains) == 0 {
		domains = h.defaultDomains
	}

	summary, err := h.syncRunner.RunSync(ctx, usecase.RunInput{
		Domains:     domains,
		Season:      req.Season,
		Competition: req.Competition,
		DryRun:      req.DryRun,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "run sync job failed",
			"domains", domains,
			"season", req.Season,
			"competition", req.Competition,
			"error", err,
		)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, syncRunDTO{RunSummary: summary, Totals: summary.Totals()})
}

func (h *Handler) ListSyncDomains(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListSyncDomains")
	defer span.End()

	if h.syncRunner == nil {
		writeError(ctx, w, fmt.Errorf("%w: sync service is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	specs := h.syncRunner.Domains()
	items := make([]syncDomainDTO, 0, len(specs))
	for _, spec := range specs {
		items = append(items, syncDomainDTO{
			Name:        string(spec.Name),
			Endpoint:    spec.Endpoint,
			Paged:       spec.Paged,
			Table:       spec.Target.Table,
			ConflictKey: append([]string(nil), spec.Target.ConflictKey...),
		})
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

var strictJSON = sonic.Config{DisallowUnknownFields: true}.Froze()

// decodeSyncJobRequest treats an empty body as "sync everything".
func decodeSyncJobRequest(r *http.Request) (syncJobRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSyncRequestBytes+1))
	if err != nil {
		return syncJobRequest{}, fmt.Errorf("%w: read request body: %v", usecase.ErrInvalidInput, err)
	}
	if len(body) > maxSyncRequestBytes {
		return syncJobRequest{}, fmt.Errorf("%w: request body exceeds %d bytes", usecase.ErrInvalidInput, maxSyncRequestBytes)
	}

	var req syncJobRequest
	if len(bytes.TrimSpace(body)) == 0 {
		return req, nil
	}
	if err := strictJSON.Unmarshal(body, &req); err != nil {
		return syncJobRequest{}, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}

	return req, nil
}
