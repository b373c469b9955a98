package ingestion

import (
	"github.com/qiniu/monitorflow/internal/eventbus"
)

// Validator bundles the ingestion-time configuration validation needs:
// value ceiling and the allowed-environment set (config's
// ValidationConfig/IngestionConfig, SPEC_FULL.md §2).
type Validator struct {
	maxValue            float64
	allowedEnvironments map[eventbus.Environment]bool
}

func NewValidator(maxValue float64, allowedEnvironments []string) *Validator {
	allowed := make(map[eventbus.Environment]bool, len(allowedEnvironments))
	for _, e := range allowedEnvironments {
		allowed[eventbus.Environment(e)] = true
	}
	return &Validator{maxValue: maxValue, allowedEnvironments: allowed}
}

// Validate checks and normalizes m in place, returning one message per
// violated invariant (empty means accepted).
func (v *Validator) Validate(m *eventbus.MetricEvent) eventbus.ValidationErrors {
	return eventbus.ValidateMetricEvent(m, v.maxValue, v.allowedEnvironments)
}
