package request

type CreateIncident struct {
	Title               string   `json:"title" validate:"required,max=200"`
	Description         string   `json:"description" validate:"required,max=5000"`
	Severity            string   `json:"severity" validate:"required,oneof=low medium high critical"`
	Latitude            *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude           *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	LocationDescription *string  `json:"location_description" validate:"omitempty,max=500"`
	ImageURLs           []string `json:"image_urls" validate:"omitempty,max=10,dive,required"`
	AudioURLs           []string `json:"audio_urls" validate:"omitempty,max=5,dive,required"`
}

type UpdateIncidentStatus struct {
	Status string  `json:"status" validate:"required,oneof=open in_progress under_review resolved closed cancelled"`
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

type AssignIncident struct {
	AssigneeID string `json:"assignee_id" validate:"required"`
}
