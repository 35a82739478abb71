package models

import "time"

// SpeechJobStatus is the lifecycle state of a speech-to-text job.
type SpeechJobStatus string

const (
	SpeechJobPending  SpeechJobStatus = "PENDING"
	SpeechJobFinished SpeechJobStatus = "FINISHED"
)

// SpeechJob tracks an uploaded audio file awaiting transcription. The
// transcription itself is done by an external worker; this service only
// records intake and status.
type SpeechJob struct {
	TaskID    string          `json:"task_id"`
	Filename  string          `json:"filename"`
	Status    SpeechJobStatus `json:"status"`
	Result    string          `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
