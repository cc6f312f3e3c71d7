// Package domain describes the generative models the platform can invoke.
package domain

import (
	"errors"
	"time"
)

// Model is one entry in the model catalog. Credit rates are expressed in
// credits per 1,000 tokens; free-tier models carry zero rates.
type Model struct {
	ID              string
	DisplayName     string
	Provider        string
	FreeTier        bool
	InputRatePerK   float64
	OutputRatePerK  float64
	MaxOutputTokens int
	Temperature     float64
	RequestTimeout  time.Duration
}

var (
	ErrModelNotFound = errors.New("model_not_found")
	ErrInvalidModel  = errors.New("invalid_model")
)
