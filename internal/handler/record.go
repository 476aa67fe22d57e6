package handler

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	validation "github.com/jellydator/validation"

	"github.com/faucetdb/recordgate/internal/apperror"
	"github.com/faucetdb/recordgate/internal/model"
	"github.com/faucetdb/recordgate/internal/server/middleware"
)

// Paging bounds for list requests.
const (
	DefaultPageSize = 25
	MaxPageSize     = 1000
)

var recordIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// RecordStore is the persistence the record handlers need.
type RecordStore interface {
	Create(ctx context.Context, ownerID string, in model.CreateRecordInput) (*model.Record, error)
	Get(ctx context.Context, ownerID, id string) (*model.Record, error)
	List(ctx context.Context, ownerID string, limit, offset int) ([]model.Record, int, error)
	Delete(ctx context.Context, ownerID, id string) error
	Ping(ctx context.Context) error
}

// RecordHandler serves the record API. Every operation is scoped to the
// caller resolved by the gateway.
type RecordHandler struct {
	store RecordStore
	now   func() time.Time
}

// NewRecordHandler creates a new RecordHandler.
func NewRecordHandler(store RecordStore) *RecordHandler {
	return &RecordHandler{store: store, now: time.Now}
}

func validateCreate(in *model.CreateRecordInput) error {
	err := validation.ValidateStruct(in,
		validation.Field(&in.ID,
			validation.Length(1, 64).Error("id must be between 1 and 64 characters"),
			validation.Match(recordIDPattern).Error("id may only contain letters, digits, '-' and '_'"),
		),
		validation.Field(&in.Name,
			validation.Required.Error("name is required"),
			validation.Length(1, 255).Error("name must be between 1 and 255 characters"),
		),
	)
	return apperror.FromValidation(err)
}

// Create stores a new record.
// POST /records
func (h *RecordHandler) Create(r *http.Request, id *model.IdentityContext) (*middleware.Response, error) {
	var in model.CreateRecordInput
	if err := readJSON(r, &in); err != nil {
		return nil, err
	}
	if err := validateCreate(&in); err != nil {
		return nil, err
	}

	rec, err := h.store.Create(r.Context(), id.UserID, in)
	if err != nil {
		return nil, err
	}
	return middleware.JSON(http.StatusCreated, rec), nil
}

// Get returns one record.
// GET /records/{id}
func (h *RecordHandler) Get(r *http.Request, id *model.IdentityContext) (*middleware.Response, error) {
	recordID := chi.URLParam(r, "id")
	if recordID == "" {
		return nil, &apperror.ValidationError{Message: "Record id is required", Details: []string{"id: required"}}
	}

	rec, err := h.store.Get(r.Context(), id.UserID, recordID)
	if err != nil {
		return nil, err
	}
	return middleware.JSON(http.StatusOK, rec), nil
}

// List returns a page of the caller's records.
// GET /records?limit=&offset=
func (h *RecordHandler) List(r *http.Request, id *model.IdentityContext) (*middleware.Response, error) {
	start := h.now()
	limit := clampInt(queryInt(r, "limit", DefaultPageSize), 1, MaxPageSize)
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	records, total, err := h.store.List(r.Context(), id.UserID, limit, offset)
	if err != nil {
		return nil, err
	}

	took := float64(h.now().Sub(start).Microseconds()) / 1000.0
	return middleware.JSON(http.StatusOK, model.ListResponse{
		Resource: records,
		Meta: &model.ResponseMeta{
			Count:  total,
			Limit:  limit,
			Offset: offset,
			TookMs: took,
		},
	}), nil
}

// Delete removes one record.
// DELETE /records/{id}
func (h *RecordHandler) Delete(r *http.Request, id *model.IdentityContext) (*middleware.Response, error) {
	recordID := chi.URLParam(r, "id")
	if recordID == "" {
		return nil, &apperror.ValidationError{Message: "Record id is required", Details: []string{"id: required"}}
	}
	if err := h.store.Delete(r.Context(), id.UserID, recordID); err != nil {
		return nil, err
	}
	return middleware.NoContent(), nil
}
