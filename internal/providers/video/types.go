package video

import "context"

// TaskStatus is the provider-side state of an image-to-video task.
type TaskStatus string

const (
	TaskSubmitted  TaskStatus = "submitted"
	TaskProcessing TaskStatus = "processing"
	TaskSucceed    TaskStatus = "succeed"
	TaskFailed     TaskStatus = "failed"
)

// SubmitRequest describes one generation job.
type SubmitRequest struct {
	ImageURL string
	Prompt   string
}

// Task is the provider view of a generation job. VideoURL is set only once
// the task succeeded.
type Task struct {
	ID       string
	Status   TaskStatus
	Message  string
	VideoURL string
}

// Provider submits and polls image-to-video jobs.
type Provider interface {
	Submit(ctx context.Context, req SubmitRequest) (*Task, error)
	Poll(ctx context.Context, taskID string) (*Task, error)
}
