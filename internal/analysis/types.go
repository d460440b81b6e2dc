package analysis

// Severity grades a finding. Smell findings use warning/error, security
// findings use medium/high/critical, diff change entries use info.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Level is the complexity band of a score. Bands are fixed, not configurable.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Trend classifies a cross-version metric delta.
type Trend string

const (
	TrendIncreased     Trend = "increased"
	TrendDecreased     Trend = "decreased"
	TrendUnchanged     Trend = "unchanged"
	TrendNewSymbol     Trend = "new_symbol"
	TrendRemovedSymbol Trend = "removed_symbol"
)
