package request

type PresignUpload struct {
	Kind      string `json:"kind" validate:"required,oneof=image audio"`
	Extension string `json:"extension" validate:"required,alphanum,max=5"`
}
