package domain

import "time"

// TaskStatus enumerates photo task lifecycle states.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Terminal reports whether no further transition can happen.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusSucceeded || s == TaskStatusFailed || s == TaskStatusCancelled
}

// PhotoTask is one template rendered for one user within a batch.
type PhotoTask struct {
	ID                 string     `json:"id"`
	BatchID            string     `json:"batch_id"`
	TemplateID         int64      `json:"template_id"`
	UsedTemplateID     int64      `json:"used_template_id,omitempty"`
	Status             TaskStatus `json:"status"`
	Progress           int        `json:"progress"`
	ResultURLs         []string   `json:"result_urls,omitempty"`
	ExecutionID        string     `json:"execution_id,omitempty"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	TemplateDowngraded bool       `json:"template_downgraded,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// PhotoBatch groups the tasks created by one photo request.
type PhotoBatch struct {
	ID           string      `json:"id"`
	OwnerID      string      `json:"-"`
	UserImageURL string      `json:"user_image_url"`
	FaceType     string      `json:"face_type,omitempty"`
	Tasks        []PhotoTask `json:"tasks"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Done reports whether every task reached a terminal state.
func (b *PhotoBatch) Done() bool {
	for _, task := range b.Tasks {
		if !task.Status.Terminal() {
			return false
		}
	}
	return true
}
