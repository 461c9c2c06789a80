package model

import "time"

// RcaAiSuggestion statuses.
const (
	RcaGenerating = "generating"
	RcaGenerated  = "generated"
	RcaReviewed   = "reviewed"
	RcaApproved   = "approved"
	RcaModified   = "modified"
	RcaFailed     = "failed"
)

// Incident categories, in categorizer priority order.
const (
	CategoryPPEViolation         = "ppe_violation"
	CategoryEquipmentMalfunction = "equipment_malfunction"
	CategorySlipTripFall         = "slip_trip_fall"
	CategoryLiftingInjury        = "lifting_injury"
	CategoryChemicalExposure     = "chemical_exposure"
	CategoryElectricalIncident   = "electrical_incident"
	CategoryVehicleIncident      = "vehicle_incident"
	CategoryFireExplosion        = "fire_explosion"
	CategoryConfinedSpace        = "confined_space"
	CategoryGeneralSafety        = "general_safety"
)

// RcaAiSuggestion is the single AI-drafted RCA for an incident. One row per
// incident; forced regeneration deletes and re-inserts. Version guards
// against lost updates from concurrent review/approve calls.
type RcaAiSuggestion struct {
	ID                        string     `json:"id" db:"id"`
	Version                   int64      `json:"version" db:"version"`
	IncidentID                string     `json:"incident_id" db:"incident_id"`
	SuggestedFiveWhys         string     `json:"suggested_five_whys" db:"suggested_five_whys"`
	SuggestedCorrectiveAction string     `json:"suggested_corrective_action" db:"suggested_corrective_action"`
	SuggestedPreventiveAction string     `json:"suggested_preventive_action" db:"suggested_preventive_action"`
	ConfidenceScore           float64    `json:"confidence_score" db:"confidence_score"`
	IncidentCategory          string     `json:"incident_category" db:"incident_category"`
	TemplateUsed              string     `json:"template_used" db:"template_used"`
	Model                     string     `json:"model" db:"model"`
	TokensUsed                *int       `json:"tokens_used,omitempty" db:"tokens_used"`
	ProcessingTimeMs          *int64     `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	Status                    string     `json:"status" db:"status"`
	GeneratedAt               time.Time  `json:"generated_at" db:"generated_at"`
	ReviewedAt                *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewedBy                *string    `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ErrorMessage              *string    `json:"error_message,omitempty" db:"error_message"`
}

// RcaReport is the finalized, manager-authored RCA. Created exactly once per
// incident.
type RcaReport struct {
	ID               string    `json:"id" db:"id"`
	IncidentID       string    `json:"incident_id" db:"incident_id"`
	ManagerID        string    `json:"manager_id" db:"manager_id"`
	FiveWhys         string    `json:"five_whys" db:"five_whys"`
	CorrectiveAction string    `json:"corrective_action" db:"corrective_action"`
	PreventiveAction string    `json:"preventive_action" db:"preventive_action"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}
