package cache

const namespace = "monitoring:"

// MetricKey is the latest-value cache key for (service, metricType).
func MetricKey(service, metricType string) string {
	return namespace + "metric:" + service + ":" + metricType
}

// MetricKeyPrefix returns the scan prefix for the Latest-Metric Reader,
// optionally narrowed to one service.
func MetricKeyPrefix(service string) string {
	if service == "" {
		return namespace + "metric:"
	}
	return namespace + "metric:" + service + ":"
}

// AlertStateKey is the current-ACTIVE-alert cache key for (service, alertType).
func AlertStateKey(service, alertType string) string {
	return namespace + "alert:state:" + service + ":" + alertType
}

// AlertPendingKey is the duration-threshold sustain-window marker, per
// SPEC_FULL.md §11's required resolution of the duration-threshold open
// question.
func AlertPendingKey(service, alertType string) string {
	return namespace + "alert:pending:" + service + ":" + alertType
}
