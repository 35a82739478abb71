// Package medops provides a client for the medops telemetry and messaging
// API.
package medops

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Client is a medops API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new medops client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// doRequest performs an HTTP request with a JSON body.
func (c *Client) doRequest(method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, decodeError(resp.StatusCode, respBody)
	}

	return respBody, nil
}

// decodeError turns an error response into an error. The API reports
// validation failures as {"errors": [...], "count": n} and everything else
// as {"error": "..."}.
func decodeError(status int, body []byte) error {
	var multi struct {
		Errors []string `json:"errors"`
	}
	if json.Unmarshal(body, &multi) == nil && len(multi.Errors) > 0 {
		return fmt.Errorf("medops error %d: %s", status, strings.Join(multi.Errors, "; "))
	}

	var single struct {
		Error string `json:"error"`
	}
	json.Unmarshal(body, &single)
	return fmt.Errorf("medops error %d: %s", status, single.Error)
}

// Device represents a registered telemetry device.
type Device struct {
	DeviceID               int64   `json:"device_id"`
	Name                   string  `json:"name"`
	CurrentFirmwareVersion *string `json:"current_firmware_version"`
	DateOfPurchase         *string `json:"date_of_purchase"`
	SerialNumber           *string `json:"serial_number"`
	MACAddress             *string `json:"mac_address"`
}

// CreateDevice registers a new device.
func (c *Client) CreateDevice(device *Device) (*Device, error) {
	body, _ := json.Marshal(device)
	respBody, err := c.doRequest("POST", "/devices", body)
	if err != nil {
		return nil, err
	}

	var resp Device
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListDevices lists all registered devices.
func (c *Client) ListDevices() ([]Device, error) {
	respBody, err := c.doRequest("GET", "/devices", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Devices []Device `json:"devices"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

// Datum is one reading in an ingestion batch. Data is the kind-specific
// payload.
type Datum struct {
	DeviceID       int64           `json:"device_id"`
	AssignedUser   *int64          `json:"assigned_user,omitempty"`
	CollectionTime string          `json:"collection_time"`
	DataType       string          `json:"data_type"`
	Data           json.RawMessage `json:"data"`
}

// IngestReadings submits a batch of device readings.
func (c *Client) IngestReadings(data []Datum) error {
	body, _ := json.Marshal(map[string]any{"data": data})
	_, err := c.doRequest("POST", "/data", body)
	return err
}

// Attachment is a message attachment reference.
type Attachment struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

// Message represents a chat message.
type Message struct {
	ID          string       `json:"id"`
	SenderID    int64        `json:"sender_id"`
	Text        string       `json:"text"`
	Timestamp   time.Time    `json:"timestamp"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// MessagesResponse is the response from message queries.
type MessagesResponse struct {
	Messages []Message `json:"messages"`
	Count    int       `json:"count"`
}

// SendMessage sends a chat message to the given recipients.
func (c *Client) SendMessage(senderID int64, recipientIDs []int64, text string, attachments []Attachment) (*Message, error) {
	body, _ := json.Marshal(map[string]any{
		"sender_id":     senderID,
		"recipient_ids": recipientIDs,
		"text":          text,
		"attachments":   attachments,
	})

	respBody, err := c.doRequest("POST", "/chat", body)
	if err != nil {
		return nil, err
	}

	var resp Message
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueryMessages fetches the messages of a conversation between since and
// until, both exclusive and both optional, oldest first.
func (c *Client) QueryMessages(userIDs []int64, since, until *time.Time) (*MessagesResponse, error) {
	req := map[string]any{"user_ids": userIDs}
	if since != nil {
		req["since"] = since.Format(time.RFC3339)
	}
	if until != nil {
		req["until"] = until.Format(time.RFC3339)
	}
	body, _ := json.Marshal(req)

	respBody, err := c.doRequest("POST", "/chat/query", body)
	if err != nil {
		return nil, err
	}

	var resp MessagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LatestMessages fetches the most recent page of a conversation, oldest
// first. limit <= 0 leaves the page size to the server.
func (c *Client) LatestMessages(userIDs []int64, until *time.Time, limit int) (*MessagesResponse, error) {
	q := url.Values{}
	q.Set("user_ids", joinIDs(userIDs))
	if until != nil {
		q.Set("until", until.Format(time.RFC3339))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	respBody, err := c.doRequest("GET", "/chat/latest?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp MessagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Conversations lists the participant sets of every conversation that
// includes all the given users.
func (c *Client) Conversations(userIDs []int64) ([][]int64, error) {
	q := url.Values{}
	q.Set("user_ids", joinIDs(userIDs))

	respBody, err := c.doRequest("GET", "/chat/conversations?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Chats [][]int64 `json:"chats"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Chats, nil
}

// UploadSpeech uploads an audio file for transcription and returns the task
// id to poll.
func (c *Client) UploadSpeech(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequest("POST", c.BaseURL+"/speech", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", decodeError(resp.StatusCode, respBody)
	}

	var result struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", err
	}
	return result.TaskID, nil
}

// SpeechJob is the status of a transcription job.
type SpeechJob struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
}

// SpeechStatus polls a transcription job.
func (c *Client) SpeechStatus(taskID string) (*SpeechJob, error) {
	respBody, err := c.doRequest("GET", "/speech/"+taskID, nil)
	if err != nil {
		return nil, err
	}

	var resp SpeechJob
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Checks    map[string]interface{} `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// Health checks server health.
func (c *Client) Health() (*HealthResponse, error) {
	respBody, err := c.doRequest("GET", "/health", nil)
	if err != nil {
		return nil, err
	}

	var resp HealthResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// joinIDs renders ids as the comma-separated form the query endpoints take.
func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
