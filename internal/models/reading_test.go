package models

import "testing"

func TestDecodeReadingValue(t *testing.T) {
	tests := []struct {
		kind ReadingKind
		raw  string
		want ReadingValue
	}{
		{KindTemperature, `{"deg_c": 37.2}`, Temperature{DegC: 37.2}},
		{KindBloodPressure, `{"systolic": 120, "diastolic": 80}`, BloodPressure{Systolic: 120, Diastolic: 80}},
		{KindGlucoseLevel, `{"mg_dl": 95}`, GlucoseLevel{MgDl: 95}},
		{KindHeartRate, `{"bpm": 61}`, HeartRate{BPM: 61}},
		{KindWeight, `{"grams": 72500}`, Weight{Grams: 72500}},
		{KindOxygenSaturation, `{"percentage": 98.5}`, OxygenSaturation{Percentage: 98.5}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got, err := DecodeReadingValue(tt.kind, []byte(tt.raw))
			if err != nil {
				t.Fatalf("DecodeReadingValue: %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeReadingValue = %#v, want %#v", got, tt.want)
			}
			if got.Kind() != tt.kind {
				t.Errorf("Kind() = %s, want %s", got.Kind(), tt.kind)
			}
		})
	}
}

func TestDecodeReadingValueUnknownKind(t *testing.T) {
	if _, err := DecodeReadingValue("mood", []byte(`{}`)); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestDecodeReadingValueBadPayload(t *testing.T) {
	if _, err := DecodeReadingValue(KindTemperature, []byte(`not json`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := BloodPressure{Systolic: 118, Diastolic: 76}

	raw, err := EncodeReadingValue(original)
	if err != nil {
		t.Fatalf("EncodeReadingValue: %v", err)
	}

	decoded, err := DecodeReadingValue(KindBloodPressure, raw)
	if err != nil {
		t.Fatalf("DecodeReadingValue: %v", err)
	}
	if decoded != original {
		t.Errorf("round trip = %#v, want %#v", decoded, original)
	}
}

func TestReadingKindValid(t *testing.T) {
	for _, kind := range []ReadingKind{KindTemperature, KindBloodPressure, KindGlucoseLevel, KindHeartRate, KindWeight, KindOxygenSaturation} {
		if !kind.Valid() {
			t.Errorf("%s should be valid", kind)
		}
	}
	if ReadingKind("steps").Valid() {
		t.Error("unknown kind should not be valid")
	}
}
