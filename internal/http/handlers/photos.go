package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"facestudio/internal/domain"
	"facestudio/internal/middleware"
	"facestudio/internal/photo"
)

type createPhotosRequest struct {
	ImageURL       string  `json:"image_url" validate:"required,url"`
	SecondImageURL string  `json:"second_image_url" validate:"omitempty,url"`
	TemplateIDs    []int64 `json:"template_ids" validate:"required,min=1,max=20,dive,gt=0"`
	FaceType       string  `json:"face_type" validate:"omitempty,max=16"`
}

type taskSummary struct {
	ID         string            `json:"id"`
	TemplateID int64             `json:"template_id"`
	Status     domain.TaskStatus `json:"status"`
}

type createPhotosResponse struct {
	BatchID string        `json:"batch_id"`
	Tasks   []taskSummary `json:"tasks"`
}

// CreatePhotos queues one face swap task per template and returns at once.
func (a *App) CreatePhotos(w http.ResponseWriter, r *http.Request) {
	var req createPhotosRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	batch, err := a.Photos.CreateBatch(r.Context(), photo.CreateRequest{
		OwnerID:            middleware.UserIDFromContext(r.Context()),
		UserImageURL:       req.ImageURL,
		SecondUserImageURL: req.SecondImageURL,
		TemplateIDs:        req.TemplateIDs,
		FaceType:           req.FaceType,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a.logger(r).Error().Err(err).Msg("photos: create batch failed")
		a.errorLocalized(w, r, http.StatusServiceUnavailable, "unavailable", "photo queue unavailable")
		return
	}
	resp := createPhotosResponse{BatchID: batch.ID, Tasks: make([]taskSummary, len(batch.Tasks))}
	for i, task := range batch.Tasks {
		resp.Tasks[i] = taskSummary{ID: task.ID, TemplateID: task.TemplateID, Status: task.Status}
	}
	a.json(w, http.StatusAccepted, resp)
}

// PhotoBatch reports every task of a batch owned by the caller.
func (a *App) PhotoBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := a.Photos.Get(chi.URLParam(r, "batch_id"), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		a.errorLocalized(w, r, http.StatusNotFound, "not_found", "batch not found")
		return
	}
	a.json(w, http.StatusOK, batch)
}

// CancelPhotoBatch stops the remaining tasks of a batch.
func (a *App) CancelPhotoBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := a.Photos.Cancel(chi.URLParam(r, "batch_id"), middleware.UserIDFromContext(r.Context()))
	switch {
	case err == nil:
		a.json(w, http.StatusOK, batch)
	case errors.Is(err, domain.ErrNotFound):
		a.errorLocalized(w, r, http.StatusNotFound, "not_found", "batch not found")
	case errors.Is(err, domain.ErrBatchFinished):
		a.errorLocalized(w, r, http.StatusConflict, "conflict", "batch already finished")
	default:
		a.logger(r).Error().Err(err).Msg("photos: cancel failed")
		a.errorLocalized(w, r, http.StatusInternalServerError, "internal", "cancel failed")
	}
}
