package dto

import "encoding/json"

type VerificationRequestDTO struct {
	CapabilityKey string                 `json:"capability_key" validate:"required"`
	Fields        map[string]interface{} `json:"fields" validate:"required"`
}

type VerificationResponseDTO struct {
	CapabilityKey string          `json:"capability_key"`
	Promoted      bool            `json:"promoted"`
	Code          int             `json:"code"`
	Message       string          `json:"message,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
}
