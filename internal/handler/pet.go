package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"digipet-api/internal/middleware"
	"digipet-api/internal/mint"
	"digipet-api/internal/service"
	"digipet-api/pkg/apierror"
	"digipet-api/pkg/response"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 16

// PetHandler handles pet HTTP requests.
type PetHandler struct {
	pets *service.PetService
	log  *slog.Logger
}

// NewPetHandler creates a new pet handler.
func NewPetHandler(pets *service.PetService, logger *slog.Logger) *PetHandler {
	return &PetHandler{pets: pets, log: logger.With("component", "pet_handler")}
}

// InteractRequest is the body of PATCH /pets/{id}/interact.
type InteractRequest struct {
	Type string `json:"type"`
}

// List handles GET /api/v1/pets
func (h *PetHandler) List(w http.ResponseWriter, r *http.Request) {
	pets, err := h.pets.List(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.List(w, pets)
}

// ListAvailable handles GET /api/v1/pets/available
func (h *PetHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	pets, err := h.pets.ListAvailable(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.List(w, pets)
}

// ListMine handles GET /api/v1/pets/mine
func (h *PetHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	pets, err := h.pets.ListByOwner(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.List(w, pets)
}

// Get handles GET /api/v1/pets/{id}
func (h *PetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := petID(w, r)
	if !ok {
		return
	}
	pet, err := h.pets.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.OK(w, pet)
}

// Interact handles PATCH /api/v1/pets/{id}/interact
func (h *PetHandler) Interact(w http.ResponseWriter, r *http.Request) {
	id, ok := petID(w, r)
	if !ok {
		return
	}
	var req InteractRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Type == "" {
		response.Error(w, apierror.ValidationError("type is required",
			apierror.FieldError{Field: "type", Message: "one of feed, play, train, groom, adventure"}))
		return
	}

	userID, _ := middleware.UserID(r.Context())
	pet, err := h.pets.Interact(r.Context(), id, userID, req.Type)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.OK(w, pet)
}

// Adopt handles PATCH /api/v1/pets/{id}/adopt. It blocks until the mint
// is confirmed, rejected or times out.
func (h *PetHandler) Adopt(w http.ResponseWriter, r *http.Request) {
	id, ok := petID(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.UserID(r.Context())

	res, err := h.pets.Adopt(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, service.ErrCancelled) && r.Context().Err() != nil {
			h.log.Info("client went away during adoption", "pet_id", id, "operation", operationRef(res))
			return
		}
		apiErr := toAPIError(err)
		if ref := operationRef(res); ref != "" {
			apiErr = apiErr.WithDetails(apierror.FieldError{Field: "operation_ref", Message: ref})
		}
		if apiErr.StatusCode >= http.StatusInternalServerError {
			h.log.Error("adoption failed", "pet_id", id, "state", res.State.String(), "error", err)
		}
		response.Error(w, apiErr)
		return
	}
	response.OK(w, res)
}

// ScheduleFeeding handles POST /api/v1/pets/schedule-feeding
func (h *PetHandler) ScheduleFeeding(w http.ResponseWriter, r *http.Request) {
	var req service.FeedingRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PetID <= 0 {
		response.Error(w, apierror.ValidationError("pet_id is required",
			apierror.FieldError{Field: "pet_id", Message: "must be a positive integer"}))
		return
	}

	userID, _ := middleware.UserID(r.Context())
	task, err := h.pets.ScheduleFeeding(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.Created(w, task)
}

// ListSchedules handles GET /api/v1/pets/{id}/schedules
func (h *PetHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	id, ok := petID(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.UserID(r.Context())
	tasks, err := h.pets.ListSchedules(r.Context(), id, userID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.List(w, tasks)
}

func petID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(w, apierror.BadRequest("invalid pet id"))
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON body"))
		return false
	}
	return true
}

func operationRef(res *mint.Result) string {
	if res == nil {
		return ""
	}
	return res.OperationRef
}
