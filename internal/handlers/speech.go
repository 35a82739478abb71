package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ramevans/Medical-Platform/internal/metrics"
	"github.com/ramevans/Medical-Platform/internal/models"
)

// maxUploadBytes caps the size of a speech upload (32 MiB).
const maxUploadBytes = 32 << 20

// UploadSpeech accepts a multipart audio upload, stores the file to disk,
// and records a pending transcription job. Transcription itself runs out of
// band; callers poll GetSpeechJob with the returned task id.
func (h *Handler) UploadSpeech(w http.ResponseWriter, r *http.Request) {
	if h.redis == nil || h.uploadDir == "" {
		h.Error(w, http.StatusNotImplemented, "speech uploads are not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.Error(w, http.StatusBadRequest, "expected a multipart form with a file field")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.ErrorList(w, http.StatusUnprocessableEntity, []string{"Missing required field: file"})
		return
	}
	defer file.Close()

	taskID := uuid.NewString()
	filename := fmt.Sprintf("%s%s", taskID, filepath.Ext(header.Filename))
	dest := filepath.Join(h.uploadDir, filename)

	out, err := os.Create(dest)
	if err != nil {
		h.logger.Error().Err(err).Str("path", dest).Msg("failed to create upload file")
		h.Error(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		h.logger.Error().Err(err).Str("path", dest).Msg("failed to write upload file")
		h.Error(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	job := &models.SpeechJob{
		TaskID:    taskID,
		Filename:  filename,
		Status:    models.SpeechJobPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.redis.CreateSpeechJob(r.Context(), job); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to record job")
		return
	}

	metrics.SpeechUploads.Inc()
	h.JSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

// GetSpeechJob reports the status of a transcription job. While the job is
// pending the response carries only the status; once finished it includes
// the transcript.
func (h *Handler) GetSpeechJob(w http.ResponseWriter, r *http.Request) {
	if h.redis == nil {
		h.Error(w, http.StatusNotImplemented, "speech uploads are not configured")
		return
	}

	taskID := chi.URLParam(r, "taskID")
	job, err := h.redis.GetSpeechJob(r.Context(), taskID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch job")
		return
	}
	if job == nil {
		h.Error(w, http.StatusNotFound, "unknown task id")
		return
	}

	resp := map[string]any{"task_id": job.TaskID, "status": job.Status}
	if job.Status == models.SpeechJobFinished {
		resp["result"] = job.Result
	}
	h.JSON(w, http.StatusOK, resp)
}
