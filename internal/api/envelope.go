package api

import (
	"github.com/danielgtaylor/huma/v2"
)

// EnvelopeVersion is the wire version of the response envelope. Bump only
// when the envelope structure itself changes; clients check this before
// parsing the payload.
const EnvelopeVersion = 1

// APIEnvelope wraps every API response in a versioned structure.
// Success responses carry data, error responses carry error.
type APIEnvelope struct { //nolint:revive // API prefix is intentional for clarity
	Version int            `json:"v" doc:"Envelope version"`
	Success bool           `json:"success" doc:"Whether the request succeeded"`
	Data    any            `json:"data,omitempty" doc:"Response payload"`
	Error   *EnvelopeError `json:"error,omitempty" doc:"Error details when success is false"`
}

// EnvelopeError is the error payload inside an envelope.
type EnvelopeError struct {
	Code    string `json:"code,omitempty" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// EnvelopeTransformer wraps all huma responses in an APIEnvelope.
// Registered on the huma config so handlers return bare payloads.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	// Already wrapped (e.g. re-entrant transforms).
	if _, ok := v.(APIEnvelope); ok {
		return v, nil
	}

	isError := len(status) > 0 && status[0] >= '4'

	if apiErr, ok := v.(*APIError); ok {
		return APIEnvelope{
			Version: EnvelopeVersion,
			Success: false,
			Error: &EnvelopeError{
				Code:    apiErr.Code,
				Message: apiErr.Message,
				Details: apiErr.Details,
			},
		}, nil
	}

	if err, ok := v.(error); ok {
		return APIEnvelope{
			Version: EnvelopeVersion,
			Success: false,
			Error: &EnvelopeError{
				Message: err.Error(),
			},
		}, nil
	}

	if isError {
		return APIEnvelope{
			Version: EnvelopeVersion,
			Success: false,
			Error: &EnvelopeError{
				Message: status,
			},
		}, nil
	}

	return APIEnvelope{
		Version: EnvelopeVersion,
		Success: true,
		Data:    v,
	}, nil
}
