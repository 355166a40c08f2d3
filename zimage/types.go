package zimage

import (
	"context"
	"errors"
)

const (
	// GenerateKeyExpr is the key expression the responder answers queries on.
	GenerateKeyExpr = "zimage/generate/**"
	// GenerateKey is the key clients put in front of the query parameters.
	GenerateKey = "zimage/generate"
	// LivelinessToken signals the presence of the inference service on the bus.
	LivelinessToken = "forge/services/qwen3vl"
)

// ReasonInvalidFormat is sent back when the selector carries no query parameters.
const ReasonInvalidFormat = "Invalid request format"

var (
	ErrInvalidRequestFormat = errors.New("invalid request format")
	ErrInvalidParameters    = errors.New("invalid request parameters")
)

// Generator produces an image for a request and returns where it was written.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// GenerationRequest is parsed once per incoming query and not retained afterwards.
type GenerationRequest struct {
	Prompt        string  `query:"prompt"`
	Width         int     `query:"width"`
	Height        int     `query:"height"`
	Seed          int64   `query:"seed"`
	NumSteps      int     `query:"num_steps"`
	GuidanceScale float64 `query:"guidance_scale"`
	OutputFormat  string  `query:"output_format"`
}

// DefaultRequest returns a request holding every default value.
func DefaultRequest() GenerationRequest {
	return GenerationRequest{
		Width:         1024,
		Height:        1024,
		Seed:          0,
		NumSteps:      4,
		GuidanceScale: 0.0,
		OutputFormat:  "png",
	}
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// GenerationResponse is built once per query, encoded, sent and discarded.
// OutputPath is set on success, Reason on error. ResultData is reserved for
// image bytes and always empty for now.
type GenerationResponse struct {
	Status     Status
	OutputPath string
	Reason     string
	ResultData []byte
}

func Success(outputPath string) GenerationResponse {
	return GenerationResponse{Status: StatusSuccess, OutputPath: outputPath, ResultData: []byte{}}
}

func Failure(reason string) GenerationResponse {
	return GenerationResponse{Status: StatusError, Reason: reason, ResultData: []byte{}}
}
