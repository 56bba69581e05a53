package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

type JoinDrawRequest struct {
	// Mode must match the draw's wallet mode; it is an explicit confirmation
	// of which balance the entry is paid from.
	Mode string `json:"mode"`
}

func (req *JoinDrawRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Mode, validation.Required, validation.In("DEMO", "REAL")),
	)
}
