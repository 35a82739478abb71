package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ramevans/Medical-Platform/internal/api"
	"github.com/ramevans/Medical-Platform/internal/api/middleware"
	"github.com/ramevans/Medical-Platform/internal/handlers"
	"github.com/ramevans/Medical-Platform/internal/models"
	"github.com/ramevans/Medical-Platform/internal/store"
)

// newTestEnv returns the fully wired router backed by an in-memory SQLite
// store. Chat and Redis are absent, so their endpoints only work up to the
// point where the backing service is needed; validation paths are fair game.
func newTestEnv(t *testing.T) http.Handler {
	t.Helper()

	db, err := store.NewSQLiteStore(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(db.Close)

	return api.NewRouter(zerolog.Nop(), db, nil, nil, "", middleware.RateLimiterConfig{})
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func TestCreateDeviceHandler(t *testing.T) {
	r := newTestEnv(t)

	w := doJSON(t, r, "POST", "/devices", map[string]any{
		"name":          "infusion pump",
		"serial_number": "SN-100",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	device := decodeBody[models.Device](t, w)
	if device.DeviceID == 0 || device.Name != "infusion pump" {
		t.Errorf("device = %+v", device)
	}
}

func TestCreateDeviceValidation(t *testing.T) {
	r := newTestEnv(t)

	w := doJSON(t, r, "POST", "/devices", map[string]any{"name": ""})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}

	resp := decodeBody[map[string]any](t, w)
	if resp["count"].(float64) < 1 {
		t.Errorf("expected errors, got %v", resp)
	}
}

func TestDeviceLifecycleHandler(t *testing.T) {
	r := newTestEnv(t)

	created := decodeBody[models.Device](t, doJSON(t, r, "POST", "/devices", map[string]any{"name": "ecg"}))

	w := doJSON(t, r, "GET", fmt.Sprintf("/devices/%d", created.DeviceID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d", w.Code)
	}

	w = doJSON(t, r, "PUT", fmt.Sprintf("/devices/%d", created.DeviceID), map[string]any{"name": "ecg ward 2"})
	if w.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body %s", w.Code, w.Body.String())
	}
	if updated := decodeBody[models.Device](t, w); updated.Name != "ecg ward 2" {
		t.Errorf("updated name = %s", updated.Name)
	}

	w = doJSON(t, r, "DELETE", fmt.Sprintf("/devices/%d", created.DeviceID), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", w.Code)
	}

	w = doJSON(t, r, "GET", fmt.Sprintf("/devices/%d", created.DeviceID), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("GET after delete status = %d, want 404", w.Code)
	}
}

func TestListDevicesResponseShape(t *testing.T) {
	r := newTestEnv(t)

	doJSON(t, r, "POST", "/devices", map[string]any{"name": "ecg"})

	w := doJSON(t, r, "GET", "/devices", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	list := decodeBody[handlers.DeviceListResponse](t, w)
	if len(list.Devices) != 1 || list.Devices[0].Name != "ecg" {
		t.Errorf("list = %+v", list)
	}
}

func TestGetDeviceNotFound(t *testing.T) {
	r := newTestEnv(t)

	if w := doJSON(t, r, "GET", "/devices/999", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if w := doJSON(t, r, "GET", "/devices/abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestIngestReadings(t *testing.T) {
	r := newTestEnv(t)

	w := doJSON(t, r, "POST", "/data", map[string]any{
		"data": []map[string]any{
			{
				"device_id":       1,
				"collection_time": "2025-06-01T10:00:00Z",
				"data_type":       "temperature",
				"data":            map[string]any{"deg_c": 36.8},
			},
			{
				"device_id":       1,
				"assigned_user":   7,
				"collection_time": "2025-06-01T10:05:00Z",
				"data_type":       "heart_rate",
				"data":            map[string]any{"bpm": 72},
			},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	list := decodeBody[handlers.ReadingListResponse](t, doJSON(t, r, "GET", "/data", nil))
	if len(list.Data) != 2 {
		t.Fatalf("stored %d readings, want 2", len(list.Data))
	}

	var sawDefault bool
	for _, reading := range list.Data {
		if reading.AssignedUser == -1 {
			sawDefault = true
		}
	}
	if !sawDefault {
		t.Error("expected unattributed reading to default to -1")
	}
}

func TestIngestReadingsErrors(t *testing.T) {
	r := newTestEnv(t)

	w := doJSON(t, r, "POST", "/data", map[string]any{
		"data": []map[string]any{
			{
				"device_id":       1,
				"collection_time": "2025-06-01T10:00:00Z",
				"data_type":       "mood",
				"data":            map[string]any{},
			},
			{
				"device_id":       1,
				"collection_time": "not a time",
				"data_type":       "temperature",
				"data":            map[string]any{"deg_c": 37.0},
			},
		},
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}

	resp := decodeBody[struct {
		Errors []string `json:"errors"`
		Count  int      `json:"count"`
	}](t, w)
	if resp.Count != 2 || len(resp.Errors) != 2 {
		t.Fatalf("resp = %+v, want 2 errors", resp)
	}
	if !strings.Contains(resp.Errors[0], "Invalid data type") {
		t.Errorf("errors[0] = %q", resp.Errors[0])
	}

	// All-or-nothing: the valid-looking entries must not be stored either
	list := decodeBody[handlers.ReadingListResponse](t, doJSON(t, r, "GET", "/data", nil))
	if len(list.Data) != 0 {
		t.Errorf("stored %d readings after rejected batch, want 0", len(list.Data))
	}
}

func TestIngestReadingsMissingData(t *testing.T) {
	r := newTestEnv(t)

	if w := doJSON(t, r, "POST", "/data", map[string]any{}); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func createRole(t *testing.T, r http.Handler, name string) models.UserRole {
	t.Helper()
	w := doJSON(t, r, "POST", "/users/roles", map[string]any{"role_name": name})
	if w.Code != http.StatusCreated {
		t.Fatalf("create role status = %d, body %s", w.Code, w.Body.String())
	}
	return decodeBody[models.UserRole](t, w)
}

func TestCreateUserHandler(t *testing.T) {
	r := newTestEnv(t)
	role := createRole(t, r, "patient")

	w := doJSON(t, r, "POST", "/users", map[string]any{
		"dob":        "1991-03-14",
		"first_name": "Ada",
		"last_name":  "Nguyen",
		"email":      "ada@example.com",
		"password":   "correct horse",
		"roles":      []int64{role.RoleID},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	user := decodeBody[models.User](t, w)
	if user.UserID == 0 || len(user.Roles) != 1 || user.Roles[0].RoleName != "patient" {
		t.Errorf("user = %+v", user)
	}
	if strings.Contains(w.Body.String(), "correct horse") {
		t.Error("password leaked into response")
	}
}

func TestCreateUserValidation(t *testing.T) {
	r := newTestEnv(t)

	w := doJSON(t, r, "POST", "/users", map[string]any{
		"first_name": "No",
		"email":      "not-an-email",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}

	resp := decodeBody[struct {
		Errors []string `json:"errors"`
	}](t, w)
	joined := strings.Join(resp.Errors, "\n")
	for _, want := range []string{"last_name", "dob", "password", "Invalid email"} {
		if !strings.Contains(joined, want) {
			t.Errorf("errors missing %q: %v", want, resp.Errors)
		}
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	r := newTestEnv(t)

	body := map[string]any{
		"dob":        "1991-03-14",
		"first_name": "Ada",
		"last_name":  "Nguyen",
		"email":      "ada@example.com",
		"password":   "pw",
	}
	if w := doJSON(t, r, "POST", "/users", body); w.Code != http.StatusCreated {
		t.Fatalf("first create status = %d", w.Code)
	}
	if w := doJSON(t, r, "POST", "/users", body); w.Code != http.StatusConflict {
		t.Errorf("second create status = %d, want 409", w.Code)
	}
}

func TestCreateUserUnknownRole(t *testing.T) {
	r := newTestEnv(t)

	w := doJSON(t, r, "POST", "/users", map[string]any{
		"dob":        "1991-03-14",
		"first_name": "Ada",
		"last_name":  "Nguyen",
		"email":      "ada@example.com",
		"password":   "pw",
		"roles":      []int64{42},
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Role does not exist: 42") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestLogin(t *testing.T) {
	r := newTestEnv(t)

	w := doJSON(t, r, "POST", "/users", map[string]any{
		"dob":        "1985-07-01",
		"first_name": "Sam",
		"last_name":  "Osei",
		"email":      "sam@example.com",
		"password":   "hunter2",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}

	w = doJSON(t, r, "POST", "/users/login", map[string]any{
		"email":    "sam@example.com",
		"password": "hunter2",
	})
	if w.Code != http.StatusOK {
		t.Errorf("login status = %d, want 200", w.Code)
	}

	w = doJSON(t, r, "POST", "/users/login", map[string]any{
		"email":    "sam@example.com",
		"password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", w.Code)
	}

	w = doJSON(t, r, "POST", "/users/login", map[string]any{
		"email":    "nobody@example.com",
		"password": "hunter2",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unknown user login status = %d, want 401", w.Code)
	}
}

func TestListUsersByEmail(t *testing.T) {
	r := newTestEnv(t)

	doJSON(t, r, "POST", "/users", map[string]any{
		"dob":        "1985-07-01",
		"first_name": "Sam",
		"last_name":  "Osei",
		"email":      "sam@example.com",
		"password":   "pw",
	})

	users := decodeBody[[]models.User](t, doJSON(t, r, "GET", "/users?email=sam@example.com", nil))
	if len(users) != 1 || users[0].Email != "sam@example.com" {
		t.Errorf("users = %+v", users)
	}

	empty := decodeBody[[]models.User](t, doJSON(t, r, "GET", "/users?email=nobody@example.com", nil))
	if len(empty) != 0 {
		t.Errorf("users = %+v, want empty", empty)
	}

	all := decodeBody[[]models.User](t, doJSON(t, r, "GET", "/users", nil))
	if len(all) != 1 {
		t.Errorf("unfiltered list returned %d users, want 1", len(all))
	}
}

func TestListUsersByRoleName(t *testing.T) {
	r := newTestEnv(t)
	role := createRole(t, r, "doctor")

	doJSON(t, r, "POST", "/users", map[string]any{
		"dob":        "1980-01-02",
		"first_name": "Sam",
		"last_name":  "Osei",
		"email":      "sam@example.com",
		"password":   "pw",
		"roles":      []int64{role.RoleID},
	})
	doJSON(t, r, "POST", "/users", map[string]any{
		"dob":        "1991-03-14",
		"first_name": "Ada",
		"last_name":  "Nguyen",
		"email":      "ada@example.com",
		"password":   "pw",
	})

	doctors := decodeBody[[]models.User](t, doJSON(t, r, "GET", "/users?role=doctor", nil))
	if len(doctors) != 1 || doctors[0].Email != "sam@example.com" {
		t.Errorf("doctors = %+v", doctors)
	}
}

func TestRoleEndpoints(t *testing.T) {
	r := newTestEnv(t)
	role := createRole(t, r, "nurse")

	w := doJSON(t, r, "GET", fmt.Sprintf("/users/roles/%d", role.RoleID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET role status = %d", w.Code)
	}

	w = doJSON(t, r, "PUT", fmt.Sprintf("/users/roles/%d", role.RoleID), map[string]any{"role_name": "charge nurse"})
	if w.Code != http.StatusOK {
		t.Fatalf("PUT role status = %d", w.Code)
	}
	if updated := decodeBody[models.UserRole](t, w); updated.RoleName != "charge nurse" {
		t.Errorf("role name = %s", updated.RoleName)
	}

	if w := doJSON(t, r, "GET", "/users/roles/999", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing role status = %d, want 404", w.Code)
	}
}

func TestStatsHandler(t *testing.T) {
	r := newTestEnv(t)

	doJSON(t, r, "POST", "/devices", map[string]any{"name": "scale"})

	w := doJSON(t, r, "GET", "/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	stats := decodeBody[handlers.StatsResponse](t, w)
	if stats.TotalDevices != 1 {
		t.Errorf("TotalDevices = %d, want 1", stats.TotalDevices)
	}
	if stats.LastActivity != "no activity yet" {
		t.Errorf("LastActivity = %q", stats.LastActivity)
	}
}

func TestSpeechEndpointsUnconfigured(t *testing.T) {
	r := newTestEnv(t)

	if w := doJSON(t, r, "POST", "/speech", nil); w.Code != http.StatusNotImplemented {
		t.Errorf("upload status = %d, want 501", w.Code)
	}
	if w := doJSON(t, r, "GET", "/speech/some-task", nil); w.Code != http.StatusNotImplemented {
		t.Errorf("poll status = %d, want 501", w.Code)
	}
}

func TestSendMessageValidation(t *testing.T) {
	r := newTestEnv(t)

	// Validation failures are rejected before the message store is touched
	tests := []struct {
		name string
		body map[string]any
		want string
	}{
		{
			"no recipients",
			map[string]any{"sender_id": 1, "text": "hi"},
			"at least one or more recipients",
		},
		{
			"self only",
			map[string]any{"sender_id": 1, "recipient_ids": []int64{1}, "text": "hi"},
			"can't send messages to yourself",
		},
		{
			"missing sender",
			map[string]any{"recipient_ids": []int64{2}, "text": "hi"},
			"sender_id",
		},
		{
			"empty message",
			map[string]any{"sender_id": 1, "recipient_ids": []int64{2}},
			"either text or an attachment",
		},
		{
			"bad attachment kind",
			map[string]any{
				"sender_id":     1,
				"recipient_ids": []int64{2},
				"text":          "hi",
				"attachments":   []map[string]any{{"kind": "hologram", "url": "https://x"}},
			},
			"unsupported attachment kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, "POST", "/chat", tt.body)
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.want) {
				t.Errorf("body %s missing %q", w.Body.String(), tt.want)
			}
		})
	}
}

func TestQueryMessagesValidation(t *testing.T) {
	r := newTestEnv(t)

	w := doJSON(t, r, "POST", "/chat/query", map[string]any{})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	if !strings.Contains(w.Body.String(), "User ids are required") {
		t.Errorf("body = %s", w.Body.String())
	}

	w = doJSON(t, r, "POST", "/chat/query", map[string]any{"user_ids": []int64{1}})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	if !strings.Contains(w.Body.String(), "two or more recipients") {
		t.Errorf("body = %s", w.Body.String())
	}

	w = doJSON(t, r, "POST", "/chat/query", map[string]any{
		"user_ids": []int64{1, 2},
		"since":    "yesterday",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid since timestamp") {
		t.Errorf("body = %s", w.Body.String())
	}
}
