package request

type FinalizeRca struct {
	FiveWhys         string `json:"five_whys" validate:"required"`
	CorrectiveAction string `json:"corrective_action" validate:"required"`
	PreventiveAction string `json:"preventive_action" validate:"required"`
}
