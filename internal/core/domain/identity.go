package domain

import "time"

// AuthMethodPhone marks identities provisioned through phone verification.
const AuthMethodPhone = "phone"

// Identity mirrors the persisted representation in the identities table.
// Identities are keyed by canonical phone number and created lazily on the
// first successful verification.
type Identity struct {
	ID            string
	PhoneNumber   string
	PhoneVerified bool
	IsActive      bool
	AuthMethod    string
	Preferences   Preferences
	Stats         DriverStats
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastLogin     *time.Time
}

// Preferences holds per-user application settings.
type Preferences struct {
	Language      string                  `json:"language"`
	Theme         string                  `json:"theme"`
	Notifications NotificationPreferences `json:"notifications"`
}

// NotificationPreferences toggles the individual notification channels.
type NotificationPreferences struct {
	SafetyAlerts        bool `json:"safety_alerts"`
	JourneyUpdates      bool `json:"journey_updates"`
	EmergencyAlerts     bool `json:"emergency_alerts"`
	SystemAnnouncements bool `json:"system_announcements"`
}

// DriverStats tracks the aggregate driving figures shown on the profile.
type DriverStats struct {
	TodayTrips   int     `json:"today_trips"`
	TotalTrips   int     `json:"total_trips"`
	CarbonSaved  float64 `json:"carbon_saved"`
	PointsEarned int     `json:"points_earned"`
	SafetyScore  float64 `json:"safety_score"`
}

// DefaultPreferences returns the preference scaffolding applied to newly
// provisioned identities.
func DefaultPreferences() Preferences {
	return Preferences{
		Language: "en",
		Theme:    "system",
		Notifications: NotificationPreferences{
			SafetyAlerts:        true,
			JourneyUpdates:      true,
			EmergencyAlerts:     true,
			SystemAnnouncements: true,
		},
	}
}

// DefaultStats returns the stat scaffolding applied to newly provisioned
// identities.
func DefaultStats() DriverStats {
	return DriverStats{SafetyScore: 5.0}
}
