package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/kleo-network/kleo-backend/internal/models"
	"github.com/kleo-network/kleo-backend/internal/types"
)

// Dispatcher submits classification tasks to the external worker pool over
// HTTP. Submission is admission-only: a 202 means the task was queued, not
// that classification finished.
type Dispatcher struct {
	baseURL string
	client  *http.Client
}

// NewDispatcher creates a new classification dispatcher
func NewDispatcher(baseURL string, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// DispatchOutcome is the typed admission result of a submission.
// On rejection, StatusCode and Body carry the worker's response verbatim;
// StatusCode 0 means the submission never reached the worker.
type DispatchOutcome struct {
	TaskID     string               `json:"task_id"`
	Status     types.DispatchStatus `json:"status"`
	StatusCode int                  `json:"status_code"`
	Body       string               `json:"body,omitempty"`
}

// Accepted reports whether the worker admitted the task
func (o *DispatchOutcome) Accepted() bool {
	return o.Status == types.DispatchAccepted
}

type batchRequest struct {
	TaskID  string                    `json:"task_id"`
	Address string                    `json:"address"`
	Queue   types.ClassificationQueue `json:"queue"`
	History []models.HistoryItem      `json:"history"`
}

type singleRequest struct {
	TaskID   string                    `json:"task_id"`
	Address  string                    `json:"address"`
	Queue    types.ClassificationQueue `json:"queue"`
	Activity models.HistoryItem        `json:"activity"`
}

// SubmitBatch submits a whole history batch as one classification task.
// Used on the signup path.
func (d *Dispatcher) SubmitBatch(ctx context.Context, address string, items []models.HistoryItem) (*DispatchOutcome, error) {
	req := batchRequest{
		TaskID:  uuid.New().String(),
		Address: address,
		Queue:   types.QueueActivityClassification,
		History: items,
	}
	return d.post(ctx, "/classify-batch-activity", req.TaskID, req)
}

// SubmitSingle submits one history item as its own classification task.
// Used on the routine path; the caller skips items without content.
func (d *Dispatcher) SubmitSingle(ctx context.Context, address string, item models.HistoryItem) (*DispatchOutcome, error) {
	req := singleRequest{
		TaskID:   uuid.New().String(),
		Address:  address,
		Queue:    types.QueueActivityClassificationNew,
		Activity: item,
	}
	return d.post(ctx, "/classify-single-activity", req.TaskID, req)
}

func (d *Dispatcher) post(ctx context.Context, path, taskID string, payload interface{}) (*DispatchOutcome, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dispatch payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		// Timeout or connection failure: the task never reached the worker.
		return &DispatchOutcome{
			TaskID:     taskID,
			Status:     types.DispatchRejected,
			StatusCode: 0,
			Body:       err.Error(),
		}, nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		respBody = []byte(fmt.Sprintf("failed to read response body: %v", err))
	}

	outcome := &DispatchOutcome{
		TaskID:     taskID,
		StatusCode: resp.StatusCode,
	}
	if resp.StatusCode == http.StatusAccepted {
		outcome.Status = types.DispatchAccepted
	} else {
		outcome.Status = types.DispatchRejected
		outcome.Body = string(respBody)
	}
	return outcome, nil
}
