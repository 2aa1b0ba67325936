package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"smart-bin-backend/internal/ingest"
	"smart-bin-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store        store.Store
	ingest       *ingest.Service
	webpush      *webpush.Options
	db           *gorm.DB
	offlineAfter time.Duration
	now          func() time.Time
}

// NewHandler creates a new API handler. db may be nil when the store is not
// gorm-backed; push subscription routes are then not registered.
func NewHandler(s store.Store, svc *ingest.Service, webpushOptions *webpush.Options, db *gorm.DB, offlineAfter time.Duration) *Handler {
	return &Handler{
		store:        s,
		ingest:       svc,
		webpush:      webpushOptions,
		db:           db,
		offlineAfter: offlineAfter,
		now:          time.Now,
	}
}
