package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ramevans/Medical-Platform/internal/metrics"
	"github.com/ramevans/Medical-Platform/internal/models"
	"github.com/ramevans/Medical-Platform/internal/store"
)

// DeviceRequest represents the create/update device request body.
type DeviceRequest struct {
	Name                   string  `json:"name"`
	CurrentFirmwareVersion *string `json:"current_firmware_version"`
	DateOfPurchase         *string `json:"date_of_purchase"`
	SerialNumber           *string `json:"serial_number"`
	MACAddress             *string `json:"mac_address"`
}

// DeviceListResponse represents the device list response.
type DeviceListResponse struct {
	Devices []models.Device `json:"devices"`
}

// toDevice validates the request and builds the device model.
func (req *DeviceRequest) toDevice() (*models.Device, []string) {
	var errs []string
	if req.Name == "" {
		errs = append(errs, "Missing required field: name")
	}

	device := &models.Device{
		Name:                   req.Name,
		CurrentFirmwareVersion: req.CurrentFirmwareVersion,
		SerialNumber:           req.SerialNumber,
		MACAddress:             req.MACAddress,
	}

	if req.DateOfPurchase != nil {
		purchased, err := time.Parse(time.RFC3339, *req.DateOfPurchase)
		if err != nil {
			errs = append(errs, "Invalid date_of_purchase: "+err.Error())
		} else {
			device.DateOfPurchase = &purchased
		}
	}

	if errs != nil {
		return nil, errs
	}
	if err := device.Validate(); err != nil {
		return nil, []string{err.Error()}
	}
	return device, nil
}

// ListDevices handles listing all registered devices.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.db.ListDevices(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if devices == nil {
		devices = []models.Device{}
	}
	h.JSON(w, http.StatusOK, DeviceListResponse{Devices: devices})
}

// CreateDevice handles registering a new device.
func (h *Handler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var req DeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	device, errs := req.toDevice()
	if errs != nil {
		h.ErrorList(w, http.StatusUnprocessableEntity, errs)
		return
	}

	created, err := h.db.CreateDevice(r.Context(), device)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create device")
		return
	}

	metrics.DevicesRegistered.Inc()
	h.JSON(w, http.StatusCreated, created)
}

// GetDevice handles fetching a single device.
func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	deviceID, err := strconv.ParseInt(chi.URLParam(r, "deviceID"), 10, 64)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid device ID")
		return
	}

	device, err := h.db.GetDevice(r.Context(), deviceID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if device == nil {
		h.Error(w, http.StatusNotFound, "device not found")
		return
	}
	h.JSON(w, http.StatusOK, device)
}

// UpdateDevice handles updating a device's editable fields.
func (h *Handler) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	deviceID, err := strconv.ParseInt(chi.URLParam(r, "deviceID"), 10, 64)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid device ID")
		return
	}

	existing, err := h.db.GetDevice(r.Context(), deviceID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if existing == nil {
		h.Error(w, http.StatusNotFound, "device not found")
		return
	}

	var req DeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	device, errs := req.toDevice()
	if errs != nil {
		h.ErrorList(w, http.StatusUnprocessableEntity, errs)
		return
	}
	device.DeviceID = deviceID

	updated, err := h.db.UpdateDevice(r.Context(), device)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.Error(w, http.StatusNotFound, "device not found")
			return
		}
		h.Error(w, http.StatusInternalServerError, "failed to update device")
		return
	}
	h.JSON(w, http.StatusOK, updated)
}

// DeleteDevice handles removing a device.
func (h *Handler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	deviceID, err := strconv.ParseInt(chi.URLParam(r, "deviceID"), 10, 64)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid device ID")
		return
	}

	deleted, err := h.db.DeleteDevice(r.Context(), deviceID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to delete device")
		return
	}
	if !deleted {
		h.Error(w, http.StatusNotFound, "device not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
