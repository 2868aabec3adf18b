package service

import "time"

// LogFilter supports history filtering by time range, type, and serial.
type LogFilter struct {
	From   time.Time // inclusive; zero means no lower bound
	To     time.Time // inclusive; zero means no upper bound
	Type   string    // "", "COMMAND", "FAULT_RAISED", "FAULT_CLEARED", "FAILOVER", "LOGIN", "NOTICE"
	Serial string    // "" means all appliances
}

// DiscoveredFireplace is one appliance found during account discovery.
type DiscoveredFireplace struct {
	Serial       string `json:"serial"`
	Name         string `json:"name"`
	LocationID   string `json:"location_id"`
	LocationName string `json:"location_name"`
}

// AccountStatus reports the cloud session without exposing credentials.
type AccountStatus struct {
	LoggedIn   bool   `json:"logged_in"`
	Generation uint64 `json:"generation"`
}
