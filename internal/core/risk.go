package core

import "strings"

// RiskLevel is the severity assigned to a matched signature.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank orders levels from safe (0) to critical (4). Unknown levels rank below safe.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskSafe:
		return 0
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return -1
	}
}

// AtLeast reports whether l is as severe as other or more.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return l.Rank() >= other.Rank()
}

// Valid reports whether l is one of the five declared levels.
func (l RiskLevel) Valid() bool {
	return l.Rank() >= 0
}

// ParseRiskLevel converts user input into a RiskLevel. The empty string is
// returned for anything unrecognised.
func ParseRiskLevel(s string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "safe":
		return RiskSafe
	case "low":
		return RiskLow
	case "medium":
		return RiskMedium
	case "high":
		return RiskHigh
	case "critical":
		return RiskCritical
	default:
		return ""
	}
}

// RiskLevels lists every level from most to least severe.
func RiskLevels() []RiskLevel {
	return []RiskLevel{RiskCritical, RiskHigh, RiskMedium, RiskLow, RiskSafe}
}
