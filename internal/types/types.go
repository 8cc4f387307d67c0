// Package types provides common type definitions for the Kleo reward backend.
package types

// DispatchStatus represents the admission outcome of a classification submission
type DispatchStatus string

const (
	// DispatchAccepted means the worker pool admitted the task (HTTP 202)
	DispatchAccepted DispatchStatus = "accepted"
	// DispatchRejected means the worker pool refused the task
	DispatchRejected DispatchStatus = "rejected"
)

// ClassificationQueue identifies a worker queue for classification tasks
type ClassificationQueue string

const (
	// QueueActivityClassification handles batched signup classification
	QueueActivityClassification ClassificationQueue = "activity-classification"
	// QueueActivityClassificationNew handles per-item routine classification
	QueueActivityClassificationNew ClassificationQueue = "activity-classification-new"
)

// UserTier represents the API rate-limit tier
type UserTier string

const (
	// TierFree represents the default tier for unauthenticated clients
	TierFree UserTier = "free"
	// TierPremium represents partner clients with a higher request budget
	TierPremium UserTier = "premium"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
