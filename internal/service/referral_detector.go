package service

import (
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kleo-network/kleo-backend/internal/models"
)

// ReferralDetector scans a history batch for a visit to the extension's
// install page carrying a referrer marker.
type ReferralDetector struct {
	landingPage   string
	referralParam string
}

// NewReferralDetector creates a new referral detector
func NewReferralDetector(landingPage, referralParam string) *ReferralDetector {
	return &ReferralDetector{
		landingPage:   landingPage,
		referralParam: referralParam,
	}
}

// DetectReferrer returns the referrer address from the first history item
// whose URL points at the install page and carries a valid address in the
// referral query parameter. The boolean reports whether a referrer was
// found. Pure and deterministic over the item order.
func (d *ReferralDetector) DetectReferrer(history []models.HistoryItem) (string, bool) {
	for _, item := range history {
		if item.URL == "" || !strings.Contains(item.URL, d.landingPage) {
			continue
		}

		parsed, err := url.Parse(item.URL)
		if err != nil {
			continue
		}

		ref := parsed.Query().Get(d.referralParam)
		if ref == "" || !common.IsHexAddress(ref) {
			continue
		}

		return strings.ToLower(common.HexToAddress(ref).Hex()), true
	}

	return "", false
}
