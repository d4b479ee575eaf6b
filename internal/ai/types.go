package ai

import "errors"

const (
	// ApplicationJSON is the MIME type for JSON content.
	ApplicationJSON = "application/json"
)

var (
	// ErrModelResponse indicates the model returned no usable answer.
	ErrModelResponse = errors.New("invalid model response")
	// ErrScoreOutOfRange indicates the model answered with a score outside [0, 1].
	ErrScoreOutOfRange = errors.New("toxicity score out of range")
	// ErrClassifierUnavailable indicates the circuit breaker is open.
	ErrClassifierUnavailable = errors.New("classifier unavailable")
)

// ToxicityResponse is the structured answer requested from the model.
type ToxicityResponse struct {
	Toxicity float64 `json:"toxicity"`
}

// ToxicityRequest is the payload sent to the model.
type ToxicityRequest struct {
	Message string `json:"message"`
}
