package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

type CreateTemplateRequest struct {
	Label        string `json:"label"`
	Slots        int    `json:"slots"`
	EntryDollars int    `json:"entry_dollars"`
	EntryCredits int64  `json:"entry_credits"`
	FeePercent   int    `json:"fee_percent"`
	Enabled      bool   `json:"enabled"`
	AutoFill     bool   `json:"auto_fill"`
}

func (req *CreateTemplateRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Label, validation.Required, validation.Length(2, 50)),
		validation.Field(&req.Slots, validation.Required, validation.Min(2), validation.Max(1000)),
		validation.Field(&req.FeePercent, validation.Min(0), validation.Max(100)),
	)
}

type UpdateTemplateFlagsRequest struct {
	Enabled         bool `json:"enabled"`
	RequiresDeposit bool `json:"requires_deposit"`
	AutoFill        bool `json:"auto_fill"`
}

type AdminCreditRequest struct {
	Mode        string `json:"mode"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

func (req *AdminCreditRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Mode, validation.Required, validation.In("DEMO", "REAL")),
		validation.Field(&req.Amount, validation.Required, validation.Min(1)),
	)
}
