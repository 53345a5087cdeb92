package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/rfqnorm/backend/internal/audit"
	"github.com/wonny/rfqnorm/backend/internal/catalog"
	"github.com/wonny/rfqnorm/backend/internal/keywords"
	"github.com/wonny/rfqnorm/backend/internal/scheduler"
	"github.com/wonny/rfqnorm/backend/pkg/logger"
)

// CatalogSyncer is the part of catalog.Syncer the handler uses
type CatalogSyncer interface {
	Refresh(ctx context.Context) (catalog.Result, error)
	Last() (catalog.Result, bool)
}

// ScheduleReporter reports the background sync job (scheduler.Scheduler)
type ScheduleReporter interface {
	JobStats(jobName string) (scheduler.JobStats, bool)
}

// CatalogHandler exposes the live product table
type CatalogHandler struct {
	tables   func() *keywords.Tables
	syncer   CatalogSyncer
	schedule ScheduleReporter
	jobName  string
	logger   *logger.Logger
}

// NewCatalogHandler creates the handler. syncer may be nil when HZ is not configured.
func NewCatalogHandler(tables func() *keywords.Tables, syncer CatalogSyncer, log *logger.Logger) *CatalogHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &CatalogHandler{tables: tables, syncer: syncer, logger: log.Component("api")}
}

// WithSchedule adds the stats of the named sync job to GET /catalog
func (h *CatalogHandler) WithSchedule(reporter ScheduleReporter, jobName string) *CatalogHandler {
	h.schedule = reporter
	h.jobName = jobName
	return h
}

// CatalogResponse lists the products the normalizer currently knows
type CatalogResponse struct {
	Products []keywords.Product  `json:"products"`
	LastSync *catalog.Result     `json:"last_sync"`
	Schedule *scheduler.JobStats `json:"schedule,omitempty"`
}

// Get returns the product table and the last sync
// GET /api/v1/catalog
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := CatalogResponse{Products: h.tables().Products()}
	if h.syncer != nil {
		if last, ok := h.syncer.Last(); ok {
			resp.LastSync = &last
		}
	}
	if h.schedule != nil {
		if stats, ok := h.schedule.JobStats(h.jobName); ok {
			resp.Schedule = &stats
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// Sync refreshes the aliases from HZ now, bypassing the variety map cache
// POST /api/v1/catalog/sync
func (h *CatalogHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		respondError(w, http.StatusServiceUnavailable, "catalog sync is not configured (set HZ_ADDRESS)")
		return
	}

	result, err := h.syncer.Refresh(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Catalog sync request failed")
		respondError(w, http.StatusBadGateway, "Failed to sync catalog")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// AuditReader reads stored inquiries (audit.Repository)
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]audit.Record, error)
	Get(ctx context.Context, id int64) (*audit.Record, error)
}

// AuditHandler serves the audit log
type AuditHandler struct {
	reader AuditReader
	logger *logger.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(reader AuditReader, log *logger.Logger) *AuditHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AuditHandler{reader: reader, logger: log.Component("api")}
}

// List returns the latest inquiries
// GET /api/v1/audit/inquiries?limit=50
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l <= 0 || l > 500 {
			respondFieldErrors(w, []FieldError{{Field: "limit", Message: "must be an integer in [1, 500]"}})
			return
		}
		limit = l
	}

	records, err := h.reader.Recent(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list inquiries")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve inquiries")
		return
	}
	if records == nil {
		records = []audit.Record{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(records),
		"inquiries": records,
	})
}

// Get returns one inquiry
// GET /api/v1/audit/inquiries/{id}
func (h *AuditHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondFieldErrors(w, []FieldError{{Field: "id", Message: "must be an integer"}})
		return
	}

	rec, err := h.reader.Get(r.Context(), id)
	if errors.Is(err, audit.ErrNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("id", id).Error("Failed to get inquiry")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve inquiry")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}
