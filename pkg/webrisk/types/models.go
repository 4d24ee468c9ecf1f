package types

import (
	"fmt"
	"strings"
)

// ThreatType is a category of threat the oracle can score a URI against
type ThreatType string

const (
	ThreatTypeSocialEngineering ThreatType = "SOCIAL_ENGINEERING"
	ThreatTypeMalware           ThreatType = "MALWARE"
	ThreatTypeUnwantedSoftware  ThreatType = "UNWANTED_SOFTWARE"
)

// DefaultThreatTypes are requested for every evaluation
var DefaultThreatTypes = []ThreatType{
	ThreatTypeSocialEngineering,
	ThreatTypeMalware,
	ThreatTypeUnwantedSoftware,
}

// ConfidenceLevel is the oracle's ordered confidence scale
type ConfidenceLevel string

const (
	ConfidenceUnspecified   ConfidenceLevel = "CONFIDENCE_LEVEL_UNSPECIFIED"
	ConfidenceSafe          ConfidenceLevel = "SAFE"
	ConfidenceLow           ConfidenceLevel = "LOW"
	ConfidenceMedium        ConfidenceLevel = "MEDIUM"
	ConfidenceHigh          ConfidenceLevel = "HIGH"
	ConfidenceHigher        ConfidenceLevel = "HIGHER"
	ConfidenceVeryHigh      ConfidenceLevel = "VERY_HIGH"
	ConfidenceExtremelyHigh ConfidenceLevel = "EXTREMELY_HIGH"
)

var confidenceOrder = []ConfidenceLevel{
	ConfidenceUnspecified,
	ConfidenceSafe,
	ConfidenceLow,
	ConfidenceMedium,
	ConfidenceHigh,
	ConfidenceHigher,
	ConfidenceVeryHigh,
	ConfidenceExtremelyHigh,
}

// Rank returns the position of the level on the scale, or -1 for unknown values
func (c ConfidenceLevel) Rank() int {
	for i, level := range confidenceOrder {
		if level == c {
			return i
		}
	}
	return -1
}

// AtLeast reports whether c ranks at or above threshold. Unknown levels never qualify.
func (c ConfidenceLevel) AtLeast(threshold ConfidenceLevel) bool {
	rank := c.Rank()
	return rank >= 0 && rank >= threshold.Rank()
}

// ParseConfidenceLevel parses a level name, case-insensitively
func ParseConfidenceLevel(s string) (ConfidenceLevel, error) {
	level := ConfidenceLevel(strings.ToUpper(strings.TrimSpace(s)))
	if level.Rank() < 0 {
		return "", fmt.Errorf("unknown confidence level %q", s)
	}
	return level, nil
}

// EvaluateURIRequest is the body of an evaluateUri call
type EvaluateURIRequest struct {
	URI         string       `json:"uri"`
	ThreatTypes []ThreatType `json:"threatTypes"`
}

// Score is the oracle's confidence for one threat type
type Score struct {
	ThreatType      ThreatType      `json:"threatType"`
	ConfidenceLevel ConfidenceLevel `json:"confidenceLevel,omitempty"`
}

// EvaluateURIResponse is the body returned by evaluateUri
type EvaluateURIResponse struct {
	Scores []Score `json:"scores"`
}
