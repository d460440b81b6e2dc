package analysis

import (
	"math"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// functionComplexity scores one function, baseline 1 plus one per decision
// point in the parameter list and body. tree-sitter nests boolean chains
// left-associated, so counting each boolean_operator node charges an
// N-operand chain exactly N-1. Nested function definitions are clipped; they
// are scored on their own when the outer walk reaches them. Lambda bodies
// count toward the enclosing function.
func functionComplexity(fn *sitter.Node) int {
	return 1 + countBranches(fn.ChildByFieldName("parameters")) + countBranches(fn.ChildByFieldName("body"))
}

func countBranches(node *sitter.Node) int {
	if node == nil {
		return 0
	}

	count := 0
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case nodeFunctionDef:
			continue
		case nodeIf, nodeElif,
			nodeFor, nodeWhile,
			nodeExcept, nodeExceptGroup,
			nodeWith, nodeAssert,
			nodeConditional, nodeForInClause, nodeBoolOp:
			count++
		case nodeElse:
			// A terminal else on a conditional. The else of a for/while/try
			// adds nothing.
			if node.Kind() == nodeIf {
				count++
			}
		}
		count += countBranches(child)
	}
	return count
}

// ComplexityLevel buckets a score into its fixed band.
func ComplexityLevel(score int) Level {
	switch {
	case score <= 10:
		return LevelLow
	case score <= 20:
		return LevelMedium
	case score <= 50:
		return LevelHigh
	default:
		return LevelCritical
	}
}

func classifyTrend(delta float64) Trend {
	switch {
	case delta > 0:
		return TrendIncreased
	case delta < 0:
		return TrendDecreased
	default:
		return TrendUnchanged
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
