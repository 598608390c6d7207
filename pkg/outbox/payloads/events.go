package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConfigurationSubmittedEvent is emitted once a buyer confirms a package
// configuration. Line items stay in the submission row; consumers that need
// them read it by SubmissionID.
type ConfigurationSubmittedEvent struct {
	SubmissionID   uuid.UUID       `json:"submission_id"`
	SessionID      uuid.UUID       `json:"session_id"`
	PackageID      string          `json:"package_id"`
	PackageTitle   string          `json:"package_title"`
	Currency       string          `json:"currency"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	PlanName       string          `json:"plan_name,omitempty"`
	SupportName    string          `json:"support_name,omitempty"`
	FeatureCount   int             `json:"feature_count"`
	AddOnCount     int             `json:"add_on_count"`
	ContactName    string          `json:"contact_name"`
	ContactEmail   string          `json:"contact_email"`
	ContactCompany string          `json:"contact_company,omitempty"`
	SubmittedAt    time.Time       `json:"submitted_at"`
}
