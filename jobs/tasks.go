package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskShareLinkPurge removes expired share links.
	TaskShareLinkPurge = "files:share_link_purge"
	// TaskSessionPurge removes expired session rows.
	TaskSessionPurge = "auth:session_purge"
	// TaskTrashPurge hard-deletes long-soft-deleted nodes and their bytes.
	TaskTrashPurge = "files:trash_purge"
)

// PurgePayload is shared by the maintenance tasks. Reason is carried for
// the logs only.
type PurgePayload struct {
	Reason string `json:"reason,omitempty"`
}

// NewShareLinkPurgeTask constructs an Asynq task.
func NewShareLinkPurgeTask(payload PurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskShareLinkPurge, data), nil
}

// NewSessionPurgeTask constructs an Asynq task.
func NewSessionPurgeTask(payload PurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionPurge, data), nil
}

// NewTrashPurgeTask constructs an Asynq task.
func NewTrashPurgeTask(payload PurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTrashPurge, data), nil
}
