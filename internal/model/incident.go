package model

import "time"

// Incident severities.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Incident statuses. Creation always starts at open; every other transition
// is manager-only and recorded in incident_status_history.
const (
	IncidentOpen        = "open"
	IncidentInProgress  = "in_progress"
	IncidentUnderReview = "under_review"
	IncidentResolved    = "resolved"
	IncidentClosed      = "closed"
	IncidentCancelled   = "cancelled"
)

type Incident struct {
	ID                  string     `json:"id" db:"id"`
	ReportedBy          string     `json:"reported_by" db:"reported_by"`
	Title               string     `json:"title" db:"title"`
	Description         string     `json:"description" db:"description"`
	Severity            string     `json:"severity" db:"severity"`
	Status              string     `json:"status" db:"status"`
	Latitude            *float64   `json:"latitude,omitempty" db:"latitude"`
	Longitude           *float64   `json:"longitude,omitempty" db:"longitude"`
	LocationDescription *string    `json:"location_description,omitempty" db:"location_description"`
	ImageURLs           []string   `json:"image_urls" db:"-"`
	AudioURLs           []string   `json:"audio_urls" db:"-"`
	AssignedTo          *string    `json:"assigned_to,omitempty" db:"assigned_to"`
	ReportedAt          time.Time  `json:"reported_at" db:"reported_at"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty" db:"updated_at"`
	UpdatedBy           *string    `json:"updated_by,omitempty" db:"updated_by"`
}

// StatusHistory is an append-only record of an incident status transition.
type StatusHistory struct {
	ID         string    `json:"id" db:"id"`
	IncidentID string    `json:"incident_id" db:"incident_id"`
	OldStatus  *string   `json:"old_status,omitempty" db:"old_status"`
	NewStatus  string    `json:"new_status" db:"new_status"`
	ChangedBy  string    `json:"changed_by" db:"changed_by"`
	ChangedAt  time.Time `json:"changed_at" db:"changed_at"`
	Reason     *string   `json:"reason,omitempty" db:"reason"`
}

// ValidCoordinates reports whether the incident's geolocation, if present,
// is inside [-90,90] latitude and [-180,180] longitude.
func (i *Incident) ValidCoordinates() bool {
	if i.Latitude != nil && (*i.Latitude < -90 || *i.Latitude > 90) {
		return false
	}
	if i.Longitude != nil && (*i.Longitude < -180 || *i.Longitude > 180) {
		return false
	}
	return true
}
