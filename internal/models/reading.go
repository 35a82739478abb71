package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReadingKind is the closed set of device reading types the system accepts.
type ReadingKind string

const (
	KindTemperature      ReadingKind = "temperature"
	KindBloodPressure    ReadingKind = "blood_pressure"
	KindGlucoseLevel     ReadingKind = "glucose_level"
	KindHeartRate        ReadingKind = "heart_rate"
	KindWeight           ReadingKind = "weight"
	KindOxygenSaturation ReadingKind = "oxygen_saturation"
)

// Valid reports whether the kind is one of the supported reading types.
func (k ReadingKind) Valid() bool {
	_, ok := readingCodecs[k]
	return ok
}

// ReadingValue is the kind-specific payload of a reading. The set of
// implementations is closed: one per ReadingKind, registered in the codec
// table below.
type ReadingValue interface {
	Kind() ReadingKind
}

// Temperature is a body temperature measurement.
type Temperature struct {
	DegC float64 `json:"deg_c"`
}

func (Temperature) Kind() ReadingKind { return KindTemperature }

// BloodPressure is a blood pressure measurement.
type BloodPressure struct {
	Systolic  float64 `json:"systolic"`
	Diastolic float64 `json:"diastolic"`
}

func (BloodPressure) Kind() ReadingKind { return KindBloodPressure }

// GlucoseLevel is a blood sugar reading in milligrams per deciliter.
type GlucoseLevel struct {
	MgDl int64 `json:"mg_dl"`
}

func (GlucoseLevel) Kind() ReadingKind { return KindGlucoseLevel }

// HeartRate is a pulse measurement in beats per minute.
type HeartRate struct {
	BPM int64 `json:"bpm"`
}

func (HeartRate) Kind() ReadingKind { return KindHeartRate }

// Weight is a weight measurement in grams.
type Weight struct {
	Grams int64 `json:"grams"`
}

func (Weight) Kind() ReadingKind { return KindWeight }

// OxygenSaturation is a blood oxygen saturation percentage.
type OxygenSaturation struct {
	Percentage float64 `json:"percentage"`
}

func (OxygenSaturation) Kind() ReadingKind { return KindOxygenSaturation }

// readingCodecs maps each kind to the decoder for its payload. Stores and
// the ingestion API dispatch through this table rather than inspecting types
// at runtime.
var readingCodecs = map[ReadingKind]func(raw []byte) (ReadingValue, error){
	KindTemperature:      decodeInto[Temperature],
	KindBloodPressure:    decodeInto[BloodPressure],
	KindGlucoseLevel:     decodeInto[GlucoseLevel],
	KindHeartRate:        decodeInto[HeartRate],
	KindWeight:           decodeInto[Weight],
	KindOxygenSaturation: decodeInto[OxygenSaturation],
}

func decodeInto[T ReadingValue](raw []byte) (ReadingValue, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeReadingValue decodes a kind-tagged payload into its typed value.
func DecodeReadingValue(kind ReadingKind, raw []byte) (ReadingValue, error) {
	decode, ok := readingCodecs[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported reading kind: %q", kind)
	}
	value, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return value, nil
}

// EncodeReadingValue serializes a reading value for storage.
func EncodeReadingValue(value ReadingValue) ([]byte, error) {
	return json.Marshal(value)
}

// Reading is one datum collected from a device, assigned to a patient.
// Readings are append-only: once logged they cannot be updated or deleted.
type Reading struct {
	ReadingID      int64        `json:"reading_id"`
	DeviceID       int64        `json:"device_id"`
	AssignedUser   int64        `json:"assigned_user"`
	ReceivedTime   time.Time    `json:"received_time"`
	CollectionTime time.Time    `json:"collection_time"`
	Kind           ReadingKind  `json:"kind"`
	Value          ReadingValue `json:"data"`
}
