package history

import (
	"fmt"
	"math"
	"sort"
)

// BuildTrendReport orders runs oldest to newest and computes per-run deltas
// plus a trendWindow-run moving average of average complexity. Direction
// tags compare the newest run against the oldest.
func BuildTrendReport(runs []Run) (TrendReport, error) {
	if len(runs) == 0 {
		return TrendReport{}, fmt.Errorf("no scan runs available")
	}

	ordered := make([]Run, len(runs))
	copy(ordered, runs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	points := make([]TrendPoint, 0, len(ordered))
	for i, current := range ordered {
		point := TrendPoint{
			RunID:         current.ID,
			CreatedAt:     current.CreatedAt,
			GitCommit:     current.GitCommit,
			Files:         current.Files,
			Functions:     current.Functions,
			Classes:       current.Classes,
			TotalSmells:   current.TotalSmells,
			TotalSecurity: current.TotalSecurity,
			AvgComplexity: current.AvgComplexity,
			MaxComplexity: current.MaxComplexity,
		}

		if i > 0 {
			prev := ordered[i-1]
			point.DeltaFunctions = current.Functions - prev.Functions
			point.DeltaSmells = current.TotalSmells - prev.TotalSmells
			point.DeltaSecurity = current.TotalSecurity - prev.TotalSecurity
		}

		point.MovingAvgComplexity = round2(movingAverage(ordered, i))
		points = append(points, point)
	}

	first := points[0]
	last := points[len(points)-1]
	return TrendReport{
		Since:           first.CreatedAt,
		Until:           last.CreatedAt,
		ScanCount:       len(points),
		SmellTrend:      direction(float64(first.TotalSmells), float64(last.TotalSmells)),
		SecurityTrend:   direction(float64(first.TotalSecurity), float64(last.TotalSecurity)),
		ComplexityTrend: direction(first.MovingAvgComplexity, last.MovingAvgComplexity),
		Points:          points,
	}, nil
}

func movingAverage(runs []Run, index int) float64 {
	start := index - trendWindow + 1
	if start < 0 {
		start = 0
	}
	var total float64
	for i := start; i <= index; i++ {
		total += runs[i].AvgComplexity
	}
	return total / float64(index-start+1)
}

// direction grades a metric where lower is better.
func direction(first, last float64) Direction {
	switch {
	case last < first:
		return DirectionImproving
	case last > first:
		return DirectionWorsening
	default:
		return DirectionFlat
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
