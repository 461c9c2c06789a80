package model

import "time"

// ImageAnalysis is the terminal result of running vision analysis over one
// image of an incident. At most one row exists per (incident_id, image_url);
// re-processing reuses the existing row instead of analyzing again.
//
// A row is terminal from birth: either processed=true with no error, or
// processed=false with ErrorMessage set.
type ImageAnalysis struct {
	ID              string     `json:"id" db:"id"`
	IncidentID      string     `json:"incident_id" db:"incident_id"`
	ImageURL        string     `json:"image_url" db:"image_url"`
	Tags            string     `json:"tags" db:"tags"`
	AllLabels       string     `json:"all_labels" db:"all_labels"`
	TextDetected    *string    `json:"text_detected,omitempty" db:"text_detected"`
	ConfidenceScore *float64   `json:"confidence_score,omitempty" db:"confidence_score"`
	Processed       bool       `json:"processed" db:"processed"`
	ProcessedAt     time.Time  `json:"processed_at" db:"processed_at"`
	ErrorMessage    *string    `json:"error_message,omitempty" db:"error_message"`
}
