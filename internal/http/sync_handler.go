package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/reconcile"
	"go.uber.org/zap"
)

type Syncer interface {
	Sync(ctx context.Context) (*domain.CatalogSnapshot, error)
}

// SyncHandler serves the manual catalog resync. With a local Syncer the sync
// runs inline; otherwise a sync request is handed to the trigger.
type SyncHandler struct {
	syncer  Syncer
	trigger reconcile.SyncTrigger
	token   string
	log     *zap.Logger
}

func NewSyncHandler(syncer Syncer, trigger reconcile.SyncTrigger, token string, log *zap.Logger) *SyncHandler {
	return &SyncHandler{syncer: syncer, trigger: trigger, token: token, log: log}
}

type SyncResponseDTO struct {
	Status       string    `json:"status"`
	Products     int       `json:"products,omitempty"`
	Sessions     int       `json:"sessions,omitempty"`
	OpenSessions int       `json:"open_sessions,omitempty"`
	FetchedAt    time.Time `json:"fetched_at,omitzero"`
}

// POST /api/sync
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		respondError(w, http.StatusUnauthorized, "unauthorized", "invalid sync token")
		return
	}

	if h.syncer != nil {
		snapshot, err := h.syncer.Sync(r.Context())
		if err != nil {
			handleServiceError(w, r, h.log, err)
			return
		}
		respondJSON(w, http.StatusOK, SyncResponseDTO{
			Status:       "synced",
			Products:     len(snapshot.Products),
			Sessions:     len(snapshot.CheckoutSessions),
			OpenSessions: snapshot.OpenSessions(),
			FetchedAt:    snapshot.FetchedAt,
		})
		return
	}

	if h.trigger == nil {
		respondError(w, http.StatusServiceUnavailable, "sync_unavailable", "catalog sync is not configured")
		return
	}
	err := h.trigger.RequestSync(r.Context(), domain.SyncRequested{Reason: "manual", At: time.Now()})
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusAccepted, SyncResponseDTO{Status: "requested"})
}

func (h *SyncHandler) authorized(r *http.Request) bool {
	if h.token == "" {
		return false
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}
