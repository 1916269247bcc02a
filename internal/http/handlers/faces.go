package handlers

import (
	"net/http"

	"facestudio/internal/facetype"
	"facestudio/internal/middleware"
	"facestudio/internal/providers/coze"
)

type analyzeFaceRequest struct {
	ImageURL string `json:"image_url" validate:"required,url"`
}

type analyzeFaceResponse struct {
	*coze.FaceAnalysisResult
	FaceTypeDB    string `json:"face_type_db,omitempty"`
	FaceTypeLabel string `json:"face_type_label,omitempty"`
}

// AnalyzeFace runs the face analysis workflow for the posted image.
func (a *App) AnalyzeFace(w http.ResponseWriter, r *http.Request) {
	var req analyzeFaceRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	result := a.Analyzer.AnalyzeFace(r.Context(), req.ImageURL)
	if result == nil || !result.Success {
		a.analysisFailure(w, result)
		return
	}

	resp := analyzeFaceResponse{FaceAnalysisResult: result}
	if width, ok := facetype.ToDB(result.FaceType); ok {
		resp.FaceTypeDB = width
		resp.FaceTypeLabel = width
		if middleware.LocaleFromContext(r.Context()) == middleware.LocaleZH {
			resp.FaceTypeLabel, _ = facetype.Display(width)
		}
	}
	a.json(w, http.StatusOK, resp)
}

func (a *App) analysisFailure(w http.ResponseWriter, result *coze.FaceAnalysisResult) {
	if result == nil {
		a.error(w, http.StatusBadGateway, string(coze.CodeAPIError), "face analysis returned nothing")
		return
	}
	status := http.StatusBadGateway
	switch result.ErrorCode {
	case coze.CodeAPIKeyMissing:
		status = http.StatusServiceUnavailable
	case coze.CodeImageURLUnreachable:
		status = http.StatusUnprocessableEntity
	}
	retryable := result.Retryable
	a.json(w, status, errorResponse{Error: errorDetail{
		Code:      string(result.ErrorCode),
		Message:   result.ErrorMessage,
		Retryable: &retryable,
	}})
}
