package models

import (
	"errors"
	"strings"
	"time"
)

// ErrBlankDeviceName is returned when a device is created or renamed with an
// empty name.
var ErrBlankDeviceName = errors.New("device name cannot be blank")

// Device is the metadata for a patient-monitoring device. A device says
// nothing about what it measures; readings reference the device by id.
type Device struct {
	DeviceID               int64      `json:"device_id"`
	Name                   string     `json:"name"`
	CurrentFirmwareVersion *string    `json:"current_firmware_version,omitempty"`
	DateOfPurchase         *time.Time `json:"date_of_purchase,omitempty"`
	SerialNumber           *string    `json:"serial_number,omitempty"`
	MACAddress             *string    `json:"mac_address,omitempty"`
}

// Validate checks the device invariants.
func (d *Device) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrBlankDeviceName
	}
	return nil
}
