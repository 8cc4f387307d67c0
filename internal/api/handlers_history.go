package api

import (
	"net/http"

	"github.com/kleo-network/kleo-backend/internal/logging"
	"github.com/kleo-network/kleo-backend/internal/service"
)

// uploadChartRequest is the payload for POST /upload_activity_chart.
type uploadChartRequest struct {
	Image string `json:"image"`
}

// handleSaveHistory handles POST /api/v1/user/save-history
func (s *Server) handleSaveHistory(w http.ResponseWriter, r *http.Request) {
	var req service.SaveHistoryRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	resp, err := s.pipeline.SaveHistory(r.Context(), &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	logging.FromContext(r.Context()).WithFields(map[string]interface{}{
		"address": resp.Address,
		"signup":  resp.Signup,
		"saved":   resp.SavedCount,
		"skipped": resp.SkippedCount,
	}).Info("history saved")

	respondJSON(w, http.StatusOK, resp)
}

// handleUploadActivityChart handles POST /api/v1/user/upload_activity_chart
func (s *Server) handleUploadActivityChart(w http.ResponseWriter, r *http.Request) {
	var req uploadChartRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	if req.Image == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "image is required", nil)
		return
	}

	url, err := s.charts.UploadActivityChart(r.Context(), req.Image)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}
