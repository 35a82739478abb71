package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ramevans/Medical-Platform/internal/metrics"
	"github.com/ramevans/Medical-Platform/internal/models"
)

// DatumRequest represents one reading in an ingestion batch.
type DatumRequest struct {
	DeviceID       int64           `json:"device_id"`
	AssignedUser   *int64          `json:"assigned_user"`
	CollectionTime string          `json:"collection_time"`
	DataType       string          `json:"data_type"`
	Data           json.RawMessage `json:"data"`
}

// IngestRequest represents the batch ingestion request body.
type IngestRequest struct {
	Data []DatumRequest `json:"data"`
}

// ReadingListResponse represents the reading list response.
type ReadingListResponse struct {
	Data []models.Reading `json:"data"`
}

// ListReadings handles fetching all stored readings, oldest first.
func (h *Handler) ListReadings(w http.ResponseWriter, r *http.Request) {
	readings, err := h.db.ListReadings(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if readings == nil {
		readings = []models.Reading{}
	}
	h.JSON(w, http.StatusOK, ReadingListResponse{Data: readings})
}

// IngestReadings handles a batch of device readings. The batch is
// all-or-nothing: any invalid datum rejects the whole request with one error
// per offending entry.
func (h *Handler) IngestReadings(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Data == nil {
		h.ErrorList(w, http.StatusUnprocessableEntity, []string{`Missing required object key: "data"`})
		return
	}

	receivedTime := time.Now().UTC()

	var errs []string
	toStore := make([]models.Reading, 0, len(req.Data))
	for i, datum := range req.Data {
		kind := models.ReadingKind(datum.DataType)
		if !kind.Valid() {
			errs = append(errs, fmt.Sprintf("Invalid data type: %s", datum.DataType))
			continue
		}

		collectionTime, err := time.Parse(time.RFC3339, datum.CollectionTime)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Error processing data point %d: %v", i, err))
			continue
		}

		value, err := models.DecodeReadingValue(kind, datum.Data)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Error processing data point %d: %v", i, err))
			continue
		}

		// Unattributed readings are kept but flagged so they can be
		// reconciled against device assignments later.
		assignedUser := int64(-1)
		if datum.AssignedUser != nil {
			assignedUser = *datum.AssignedUser
		}

		toStore = append(toStore, models.Reading{
			DeviceID:       datum.DeviceID,
			AssignedUser:   assignedUser,
			ReceivedTime:   receivedTime,
			CollectionTime: collectionTime,
			Kind:           kind,
			Value:          value,
		})
	}

	if errs != nil {
		h.ErrorList(w, http.StatusUnprocessableEntity, errs)
		return
	}

	if _, err := h.db.CreateReadings(r.Context(), toStore); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to store readings")
		return
	}

	for _, reading := range toStore {
		metrics.ReadingsIngested.WithLabelValues(string(reading.Kind)).Inc()
	}
	w.WriteHeader(http.StatusCreated)
}
