// Package evaluator implements the Rule Evaluator: a pure, stateless
// (value, threshold, operator) -> bool function.
package evaluator

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/qiniu/monitorflow/internal/eventbus"
)

const epsilon = 1e-3

// Evaluate returns whether value satisfies operator against threshold. It
// never errors: an unknown operator returns false and logs a warning
// (SPEC_FULL.md §9).
func Evaluate(value, threshold float64, op eventbus.ComparisonOperator) bool {
	switch op {
	case eventbus.OpGT:
		return value > threshold
	case eventbus.OpGTE:
		return value >= threshold
	case eventbus.OpLT:
		return value < threshold
	case eventbus.OpLTE:
		return value <= threshold
	case eventbus.OpEQ:
		return math.Abs(value-threshold) < epsilon
	default:
		log.Warn().Str("operator", string(op)).Msg("rule evaluator: unknown comparison operator")
		return false
	}
}
