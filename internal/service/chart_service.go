package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/kleo-network/kleo-backend/internal/errors"
	"github.com/kleo-network/kleo-backend/internal/retry"
)

// ChartService uploads rendered activity charts to an imgbb-compatible
// image host and returns the hosted URL.
type ChartService struct {
	endpoint string
	apiKey   string
	client   *http.Client
	retryCfg *retry.Config
}

// NewChartService creates a new chart upload service
func NewChartService(endpoint, apiKey string, timeout time.Duration) *ChartService {
	return &ChartService{
		endpoint: endpoint,
		apiKey:   apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
		retryCfg: retry.DefaultConfig(),
	}
}

type uploadResponse struct {
	Success bool `json:"success"`
	Data    struct {
		URLViewer string `json:"url_viewer"`
	} `json:"data"`
}

// UploadActivityChart uploads a base64-encoded image and returns its viewer
// URL. Transient failures (5xx, network) are retried with backoff; a 4xx is
// returned immediately.
func (s *ChartService) UploadActivityChart(ctx context.Context, imageData string) (string, error) {
	if imageData == "" {
		return "", apperrors.NewValidationError("image", "must not be empty")
	}

	var viewerURL string
	err := retry.WithExponentialBackoff(ctx, s.retryCfg, func(ctx context.Context, attempt int) error {
		uploaded, retryable, err := s.upload(ctx, imageData)
		if err != nil {
			if retryable {
				return err
			}
			// Give up immediately on client errors
			return retry.Permanent(err)
		}
		viewerURL = uploaded
		return nil
	})
	if err != nil {
		return "", apperrors.NewInternalError("image upload failed", err)
	}
	return viewerURL, nil
}

// upload performs one upload attempt. The boolean reports whether a failure
// is worth retrying.
func (s *ChartService) upload(ctx context.Context, imageData string) (string, bool, error) {
	form := url.Values{}
	form.Set("image", imageData)
	form.Set("key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", false, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if err != nil {
		return "", true, fmt.Errorf("failed to read upload response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed uploadResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if !parsed.Success || parsed.Data.URLViewer == "" {
		return "", false, fmt.Errorf("image host reported failure")
	}
	return parsed.Data.URLViewer, false, nil
}
