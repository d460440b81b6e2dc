package history

import "time"

const SchemaVersion = 1

// trendWindow is the run count behind the complexity moving average.
const trendWindow = 3

type Run struct {
	ID            string       `json:"id"`
	CreatedAt     time.Time    `json:"created_at"`
	GitCommit     string       `json:"git_commit,omitempty"`
	GitBranch     string       `json:"git_branch,omitempty"`
	Files         int          `json:"files"`
	Functions     int          `json:"functions"`
	Classes       int          `json:"classes"`
	TotalSmells   int          `json:"total_smells"`
	TotalSecurity int          `json:"total_security"`
	AvgComplexity float64      `json:"avg_complexity"`
	MaxComplexity int          `json:"max_complexity"`
	FileMetrics   []FileMetric `json:"file_metrics,omitempty"`
}

type FileMetric struct {
	Path          string `json:"path"`
	Functions     int    `json:"functions"`
	Classes       int    `json:"classes"`
	Smells        int    `json:"smells"`
	Security      int    `json:"security"`
	MaxComplexity int    `json:"max_complexity"`
}

type FileHistoryEntry struct {
	RunID         string    `json:"run_id"`
	CreatedAt     time.Time `json:"created_at"`
	Functions     int       `json:"functions"`
	Classes       int       `json:"classes"`
	Smells        int       `json:"smells"`
	Security      int       `json:"security"`
	MaxComplexity int       `json:"max_complexity"`
}

// Direction grades a metric across runs. Lower is better for every metric
// tracked here.
type Direction string

const (
	DirectionImproving Direction = "improving"
	DirectionWorsening Direction = "worsening"
	DirectionFlat      Direction = "flat"
)

type TrendPoint struct {
	RunID               string    `json:"run_id"`
	CreatedAt           time.Time `json:"created_at"`
	GitCommit           string    `json:"git_commit,omitempty"`
	Files               int       `json:"files"`
	Functions           int       `json:"functions"`
	Classes             int       `json:"classes"`
	TotalSmells         int       `json:"total_smells"`
	TotalSecurity       int       `json:"total_security"`
	AvgComplexity       float64   `json:"avg_complexity"`
	MaxComplexity       int       `json:"max_complexity"`
	DeltaFunctions      int       `json:"delta_functions"`
	DeltaSmells         int       `json:"delta_smells"`
	DeltaSecurity       int       `json:"delta_security"`
	MovingAvgComplexity float64   `json:"moving_avg_complexity"`
}

type TrendReport struct {
	Since           time.Time    `json:"since"`
	Until           time.Time    `json:"until"`
	ScanCount       int          `json:"scan_count"`
	SmellTrend      Direction    `json:"smell_trend"`
	SecurityTrend   Direction    `json:"security_trend"`
	ComplexityTrend Direction    `json:"complexity_trend"`
	Points          []TrendPoint `json:"points"`
}
