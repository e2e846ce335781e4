package domain

// MetricRequest is a metric request decoded from an inbound topic.
type MetricRequest struct {
	// Topic is the normalized form of the topic the request arrived on.
	Topic string `json:"topic"`
	// Root is the normalized root the request belongs to.
	Root string `json:"root"`
	// Metric is the dotted metric identifier, e.g. "lte.rsrp1", or a group
	// name for aggregate requests.
	Metric string `json:"metric"`
	// IsAggregate marks requests that resolve to a grouped snapshot.
	IsAggregate bool `json:"is_aggregate"`
}
