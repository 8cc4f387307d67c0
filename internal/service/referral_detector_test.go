package service

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/kleo-network/kleo-backend/internal/models"
)

const (
	testLandingPage   = "chromewebstore.google.com/detail/kleo-network"
	testReferralParam = "refAddress"

	testReferrer = "0x52908400098527886E0F7030069857D2E4169EE7"
)

func historyWithURLs(urls ...string) []models.HistoryItem {
	items := make([]models.HistoryItem, 0, len(urls))
	for _, u := range urls {
		items = append(items, models.HistoryItem{
			URL:       u,
			Category:  "browsing",
			VisitTime: 1700000000,
		})
	}
	return items
}

func TestDetectReferrer(t *testing.T) {
	detector := NewReferralDetector(testLandingPage, testReferralParam)

	markerURL := fmt.Sprintf("https://%s?%s=%s", testLandingPage, testReferralParam, testReferrer)

	tests := []struct {
		name      string
		urls      []string
		wantFound bool
		want      string
	}{
		{
			name:      "empty batch",
			urls:      nil,
			wantFound: false,
		},
		{
			name:      "no landing page visit",
			urls:      []string{"https://example.com", "https://news.ycombinator.com"},
			wantFound: false,
		},
		{
			name:      "landing page without referral param",
			urls:      []string{"https://" + testLandingPage},
			wantFound: false,
		},
		{
			name:      "landing page with invalid address",
			urls:      []string{"https://" + testLandingPage + "?" + testReferralParam + "=not-an-address"},
			wantFound: false,
		},
		{
			name:      "valid marker returns lowercase address",
			urls:      []string{"https://example.com", markerURL},
			wantFound: true,
			want:      "0x52908400098527886e0f7030069857d2e4169ee7",
		},
		{
			name: "first valid marker wins",
			urls: []string{
				markerURL,
				fmt.Sprintf("https://%s?%s=0x1111111111111111111111111111111111111111", testLandingPage, testReferralParam),
			},
			wantFound: true,
			want:      "0x52908400098527886e0f7030069857d2e4169ee7",
		},
		{
			name: "invalid marker skipped in favor of later valid one",
			urls: []string{
				"https://" + testLandingPage + "?" + testReferralParam + "=0x123",
				markerURL,
			},
			wantFound: true,
			want:      "0x52908400098527886e0f7030069857d2e4169ee7",
		},
		{
			name:      "unparseable URL skipped",
			urls:      []string{"https://" + testLandingPage + "?%zz=1", markerURL},
			wantFound: true,
			want:      "0x52908400098527886e0f7030069857d2e4169ee7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := detector.DetectReferrer(historyWithURLs(tt.urls...))
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Property: batches that never visit the landing page can never yield a
// referrer, no matter their size or contents.
func TestDetectReferrerIgnoresUnrelatedBatches(t *testing.T) {
	detector := NewReferralDetector(testLandingPage, testReferralParam)

	properties := gopter.NewProperties(nil)

	properties.Property("no landing page visit means no referrer", prop.ForAll(
		func(paths []string) bool {
			urls := make([]string, 0, len(paths))
			for _, p := range paths {
				urls = append(urls, "https://example.com/"+p)
			}
			_, found := detector.DetectReferrer(historyWithURLs(urls...))
			return !found
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
