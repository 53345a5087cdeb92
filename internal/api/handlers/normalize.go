package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/rfqnorm/backend/internal/audit"
	"github.com/wonny/rfqnorm/backend/internal/contracts"
	"github.com/wonny/rfqnorm/backend/internal/keywords"
	"github.com/wonny/rfqnorm/backend/internal/normalizer"
	"github.com/wonny/rfqnorm/backend/internal/resolver"
	"github.com/wonny/rfqnorm/backend/pkg/logger"
)

// batchConcurrency bounds the goroutines one batch request may use
const batchConcurrency = 8

// Normalizer is the part of normalizer.Normalizer the handlers use
type Normalizer interface {
	Normalize(text string, ctx contracts.InquiryContext) []contracts.InquiryQuote
	NormalizeWithHints(text string, ctx contracts.InquiryContext, h normalizer.Hints) (contracts.InquiryQuote, error)
	Tables() *keywords.Tables
}

// Recorder stores normalized inquiries (audit.Repository)
type Recorder interface {
	Save(ctx context.Context, rec *audit.Record) error
}

// NormalizeRequest is one free-text inquiry
type NormalizeRequest struct {
	Text        string `json:"text" validate:"max=4096"`
	CurrentDate string `json:"current_date,omitempty" validate:"omitempty,date"`
}

// NormalizeResponse carries the legs of one inquiry
type NormalizeResponse struct {
	CurrentDate string                   `json:"current_date"`
	Quotes      []contracts.InquiryQuote `json:"quotes"`
	AuditID     *int64                   `json:"audit_id,omitempty"`
}

// BatchRequest normalizes independent inquiries together
type BatchRequest struct {
	Inquiries []NormalizeRequest `json:"inquiries" validate:"required,min=1,max=100,dive"`
}

// BatchResponse keeps the request order
type BatchResponse struct {
	Results []NormalizeResponse `json:"results"`
}

// InquiryToolRequest is a single-leg inquiry with explicit field hints
type InquiryToolRequest struct {
	Text        string `json:"text" validate:"max=4096"`
	CurrentDate string `json:"current_date,omitempty" validate:"omitempty,date"`
	normalizer.Hints
}

// ExpireDateResponse is the reply of the relative-date tools
type ExpireDateResponse struct {
	CurrentDate string  `json:"current_date"`
	Unit        string  `json:"unit"`
	Value       float64 `json:"value"`
	ExpireDate  string  `json:"expire_date"`
}

// NormalizeHandler handles the normalization and tool endpoints
// ⭐ SSOT: 정규화 API 핸들러는 이 구조체에서만
type NormalizeHandler struct {
	normalizer Normalizer
	recorder   Recorder
	validate   *Validator
	today      func() time.Time
	logger     *logger.Logger
}

// NewNormalizeHandler creates the handler. recorder may be nil (audit off);
// today supplies the default current_date.
func NewNormalizeHandler(n Normalizer, recorder Recorder, today func() time.Time, log *logger.Logger) *NormalizeHandler {
	if today == nil {
		today = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &NormalizeHandler{
		normalizer: n,
		recorder:   recorder,
		validate:   NewValidator(),
		today:      today,
		logger:     log.Component("api"),
	}
}

// inquiryContext parses current_date or falls back to today
func (h *NormalizeHandler) inquiryContext(currentDate string) (contracts.InquiryContext, error) {
	if strings.TrimSpace(currentDate) == "" {
		return contracts.NewInquiryContext(h.today()), nil
	}
	return contracts.ParseInquiryContext(currentDate)
}

// normalize runs one inquiry and records it
func (h *NormalizeHandler) normalize(ctx context.Context, req NormalizeRequest, source string) (NormalizeResponse, error) {
	ictx, err := h.inquiryContext(req.CurrentDate)
	if err != nil {
		return NormalizeResponse{}, err
	}

	quotes := h.normalizer.Normalize(req.Text, ictx)
	return NormalizeResponse{
		CurrentDate: ictx.CurrentDate.Format(contracts.DateLayout),
		Quotes:      quotes,
		AuditID:     h.record(ctx, req.Text, ictx, source, quotes),
	}, nil
}

// record saves the inquiry when auditing is on. A failed save is logged only.
func (h *NormalizeHandler) record(ctx context.Context, text string, ictx contracts.InquiryContext, source string, quotes []contracts.InquiryQuote) *int64 {
	if h.recorder == nil {
		return nil
	}
	rec := audit.NewRecord(text, ictx, source, quotes)
	if err := h.recorder.Save(ctx, rec); err != nil {
		h.logger.WithError(err).WithField("source", source).Warn("Failed to record inquiry")
		return nil
	}
	return &rec.ID
}

// Normalize splits and normalizes one inquiry
// POST /api/v1/normalize
func (h *NormalizeHandler) Normalize(w http.ResponseWriter, r *http.Request) {
	var req NormalizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fields := h.validate.Struct(req); fields != nil {
		respondFieldErrors(w, fields)
		return
	}

	resp, err := h.normalize(r.Context(), req, audit.SourceAPI)
	if err != nil {
		respondFieldErrors(w, []FieldError{{Field: "current_date", Message: err.Error()}})
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Batch normalizes several inquiries concurrently
// POST /api/v1/normalize/batch
func (h *NormalizeHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fields := h.validate.Struct(req); fields != nil {
		respondFieldErrors(w, fields)
		return
	}

	results := make([]NormalizeResponse, len(req.Inquiries))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(batchConcurrency)

	for i, inquiry := range req.Inquiries {
		i, inquiry := i, inquiry
		g.Go(func() error {
			resp, err := h.normalize(ctx, inquiry, audit.SourceBatch)
			if err != nil {
				return &batchError{index: i, err: err}
			}
			results[i] = resp
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var be *batchError
		if errors.As(err, &be) {
			respondFieldErrors(w, []FieldError{{
				Field:   "inquiries[" + strconv.Itoa(be.index) + "].current_date",
				Message: be.err.Error(),
			}})
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.WithField("inquiries", len(results)).Debug("Batch normalized")
	respondJSON(w, http.StatusOK, BatchResponse{Results: results})
}

type batchError struct {
	index int
	err   error
}

func (e *batchError) Error() string { return e.err.Error() }
func (e *batchError) Unwrap() error { return e.err }

// NormalizeInquiry normalizes a single leg with explicit hints
// POST /api/v1/tools/normalize_inquiry
func (h *NormalizeHandler) NormalizeInquiry(w http.ResponseWriter, r *http.Request) {
	var req InquiryToolRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fields := h.validate.Struct(req); fields != nil {
		respondFieldErrors(w, fields)
		return
	}

	ictx, err := h.inquiryContext(req.CurrentDate)
	if err != nil {
		respondFieldErrors(w, []FieldError{{Field: "current_date", Message: err.Error()}})
		return
	}

	quote, err := h.normalizer.NormalizeWithHints(req.Text, ictx, req.Hints)
	if err != nil {
		if !respondInvalid(w, err) {
			h.logger.WithError(err).Error("Failed to normalize inquiry")
			respondError(w, http.StatusInternalServerError, "Failed to normalize inquiry")
		}
		return
	}

	h.record(r.Context(), req.Text, ictx, audit.SourceTool, []contracts.InquiryQuote{quote})
	respondJSON(w, http.StatusOK, quote)
}

// ExpireDate computes an expiry relative to current_date
// GET /api/v1/tools/expire-date/{unit}?current_date=2026-02-12&value=1.5
func (h *NormalizeHandler) ExpireDate(w http.ResponseWriter, r *http.Request) {
	unit := mux.Vars(r)["unit"]
	query := r.URL.Query()

	currentDate := query.Get("current_date")
	if currentDate == "" {
		currentDate = contracts.DateOnly(h.today()).Format(contracts.DateLayout)
	}

	rawValue := query.Get("value")
	if rawValue == "" {
		respondFieldErrors(w, []FieldError{{Field: "value", Message: "is required"}})
		return
	}
	value, err := strconv.ParseFloat(rawValue, 64)
	if err != nil {
		respondFieldErrors(w, []FieldError{{Field: "value", Message: "must be a number"}})
		return
	}

	expireDate, err := normalizer.ExpireDate(currentDate, unit, value)
	if err != nil {
		if !respondInvalid(w, err) {
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, ExpireDateResponse{
		CurrentDate: currentDate,
		Unit:        unit,
		Value:       value,
		ExpireDate:  expireDate,
	})
}

// ProductCandidates ranks products mentioned in q
// GET /api/v1/products/candidates?q=热卷&top_k=3
func (h *NormalizeHandler) ProductCandidates(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	q := strings.TrimSpace(query.Get("q"))
	if q == "" {
		respondFieldErrors(w, []FieldError{{Field: "q", Message: "is required"}})
		return
	}

	topK := resolver.DefaultTopK
	if raw := query.Get("top_k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil || k <= 0 || k > 50 {
			respondFieldErrors(w, []FieldError{{Field: "top_k", Message: "must be an integer in [1, 50]"}})
			return
		}
		topK = k
	}

	candidates := resolver.FindProductCandidates(q, h.normalizer.Tables(), topK)
	if candidates == nil {
		candidates = []resolver.ProductCandidate{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":      q,
		"candidates": candidates,
	})
}
