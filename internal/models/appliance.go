package models

import "time"

// ApplianceIdentity identifies a single fireplace control module. Serial and
// APIKey come from cloud discovery (or manual onboarding); IPAddress is the
// last address the appliance reported for itself and may be rewritten when a
// poll snapshot carries a different one.
type ApplianceIdentity struct {
	Serial     string    `json:"serial"`
	Name       string    `json:"name,omitempty"`
	APIKey     string    `json:"-"` // shared secret, never exposed
	UserID     string    `json:"user_id,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	LocationID string    `json:"location_id,omitempty"`
	AddedAt    time.Time `json:"added_at"`
}
