package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus is the per-translation synchronization state.
type SyncStatus string

const (
	SyncPending  SyncStatus = "pending"
	SyncSynced   SyncStatus = "synced"
	SyncConflict SyncStatus = "conflict"
	SyncError    SyncStatus = "error"
)

// SyncOperation identifies what kind of sync run produced a result.
type SyncOperation string

const (
	OpUpload   SyncOperation = "UPLOAD"
	OpDownload SyncOperation = "DOWNLOAD"
	OpFull     SyncOperation = "FULL"
	OpWebhook  SyncOperation = "WEBHOOK"
)

// SyncResultStatus is the overall outcome of a sync run.
type SyncResultStatus string

const (
	SyncRunning SyncResultStatus = "RUNNING"
	SyncSuccess SyncResultStatus = "SUCCESS"
	SyncPartial SyncResultStatus = "PARTIAL"
	SyncFailed  SyncResultStatus = "FAILED"
)

// ConflictPolicy decides how a download merge treats conflicting entries.
type ConflictPolicy string

const (
	RemoteWins ConflictPolicy = "REMOTE_WINS"
	LocalWins  ConflictPolicy = "LOCAL_WINS"
	Manual     ConflictPolicy = "MANUAL"
)

// SyncResult summarizes a single sync run for one namespace (or all).
type SyncResult struct {
	ID          string           `json:"id"`
	Operation   SyncOperation    `json:"operation"`
	Namespace   string           `json:"namespace"`
	Status      SyncResultStatus `json:"status"`
	Uploaded    int              `json:"uploaded"`
	Downloaded  int              `json:"downloaded"`
	Skipped     int              `json:"skipped"`
	Conflicts   int              `json:"conflicts"`
	Errors      []string         `json:"errors,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at,omitzero"`
}

// NewSyncResult creates a RUNNING result for the given operation.
func NewSyncResult(op SyncOperation, namespace string) *SyncResult {
	return &SyncResult{
		ID:        uuid.NewString(),
		Operation: op,
		Namespace: namespace,
		Status:    SyncRunning,
		StartedAt: time.Now(),
	}
}

// Complete finalizes the result with the given status.
func (r *SyncResult) Complete(status SyncResultStatus) *SyncResult {
	r.Status = status
	r.CompletedAt = time.Now()
	return r
}

// Fail finalizes the result as FAILED and records the error.
func (r *SyncResult) Fail(err error) *SyncResult {
	r.Errors = append(r.Errors, err.Error())
	return r.Complete(SyncFailed)
}

// ConflictRecord captures a MANUAL-policy download conflict for later review.
type ConflictRecord struct {
	Namespace  string    `json:"namespace"`
	Key        string    `json:"key"`
	Language   string    `json:"language"`
	LocalText  string    `json:"local_text"`
	RemoteText string    `json:"remote_text"`
	DetectedAt time.Time `json:"detected_at"`
}
