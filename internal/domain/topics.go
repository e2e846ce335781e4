package domain

import (
	"fmt"
	"strings"
)

// AggregateGroups lists the metric groups that resolve to a grouped snapshot
// instead of a single field. The group named after the last segment of the
// configured root topic resolves to the full snapshot and is handled
// separately during parsing.
var AggregateGroups = map[string]struct{}{
	"lte":  {},
	"nr5g": {},
	"temp": {},
}

// NormalizeTopic canonicalizes an MQTT topic: backslashes become slashes,
// empty and whitespace-only segments are dropped, and the remaining segments
// are trimmed, lowercased and joined with "/".
func NormalizeTopic(topic string) (string, error) {
	cleaned := strings.ReplaceAll(topic, "\\", "/")
	parts := strings.Split(cleaned, "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		segment := strings.ToLower(strings.TrimSpace(part))
		if segment == "" {
			continue
		}
		segments = append(segments, segment)
	}
	if len(segments) == 0 {
		return "", ErrTopicEmpty
	}
	return strings.Join(segments, "/"), nil
}

// RootGroup returns the metric group name derived from the configured root
// topic. The group is the last segment of the normalized root, so a root of
// "home/zte" owns the aggregate group "zte".
func RootGroup(root string) (string, error) {
	normalized, err := NormalizeTopic(root)
	if err != nil {
		return "", err
	}
	segments := strings.Split(normalized, "/")
	return segments[len(segments)-1], nil
}

// normalizeSegment canonicalizes a single metric segment. Dots are preserved
// so dotted metric identifiers stay one topic segment in request topics.
func normalizeSegment(segment string) (string, error) {
	cleaned := strings.ToLower(strings.TrimSpace(segment))
	if cleaned == "" {
		return "", fmt.Errorf("%w: metric name", ErrTopicEmpty)
	}
	return cleaned, nil
}

// BuildRequestTopic renders the request topic for a metric identifier, e.g.
// ("home/zte", "lte.rsrp1") -> "home/zte/lte.rsrp1/get".
func BuildRequestTopic(root, metric string) (string, error) {
	normalizedRoot, err := NormalizeTopic(root)
	if err != nil {
		return "", err
	}
	normalizedMetric, err := normalizeSegment(metric)
	if err != nil {
		return "", err
	}
	return normalizedRoot + "/" + normalizedMetric + "/get", nil
}

// BuildResponseTopic renders the response topic for a metric identifier.
// Dotted identifiers expand into topic levels, e.g. ("home/zte", "lte.rsrp1")
// -> "home/zte/lte/rsrp1".
func BuildResponseTopic(root, metric string) (string, error) {
	normalizedRoot, err := NormalizeTopic(root)
	if err != nil {
		return "", err
	}
	parts := strings.Split(metric, ".")
	segments := make([]string, 0, len(parts)+1)
	segments = append(segments, normalizedRoot)
	for _, part := range parts {
		segment, err := normalizeSegment(part)
		if err != nil {
			return "", err
		}
		segments = append(segments, segment)
	}
	return strings.Join(segments, "/"), nil
}

// ParseRequestTopic parses a request topic without knowledge of the
// configured root. The topic must normalize to at least three segments with a
// trailing "get"; the metric is the segment before "get" and the root is
// everything before that. A metric naming a known group, or naming the last
// segment of its own root, is an aggregate request.
func ParseRequestTopic(topic string) (MetricRequest, error) {
	normalized, err := NormalizeTopic(topic)
	if err != nil {
		return MetricRequest{}, fmt.Errorf("%w: %v", ErrTopicMalformed, err)
	}
	parts := strings.Split(normalized, "/")
	if len(parts) < 3 || parts[len(parts)-1] != "get" {
		return MetricRequest{}, fmt.Errorf("%w: want <root>/<metric>/get, got %q", ErrTopicMalformed, topic)
	}
	metric := parts[len(parts)-2]
	root := strings.Join(parts[:len(parts)-2], "/")
	group := parts[len(parts)-3]
	_, aggregate := AggregateGroups[metric]
	return MetricRequest{
		Topic:       normalized,
		Root:        root,
		Metric:      metric,
		IsAggregate: aggregate || metric == group,
	}, nil
}

// ParseRequestTopicForRoot parses a request topic against a configured root.
// Topics outside the root return ErrTopicForeignRoot so callers can ignore
// them quietly; shape violations return ErrTopicMalformed. A request of
// exactly <root>/get addresses the root group and resolves to the full
// snapshot. Metric levels between the root and "get" join with dots, so
// <root>/lte/rsrp1/get parses to metric "lte.rsrp1".
func ParseRequestTopicForRoot(topic, root string) (MetricRequest, error) {
	normalizedRoot, err := NormalizeTopic(root)
	if err != nil {
		return MetricRequest{}, err
	}
	normalized, err := NormalizeTopic(topic)
	if err != nil {
		return MetricRequest{}, fmt.Errorf("%w: %v", ErrTopicMalformed, err)
	}
	parts := strings.Split(normalized, "/")
	if len(parts) < 2 || parts[len(parts)-1] != "get" {
		return MetricRequest{}, fmt.Errorf("%w: want <root>/.../get, got %q", ErrTopicMalformed, topic)
	}
	rootParts := strings.Split(normalizedRoot, "/")
	if len(parts)-1 < len(rootParts) {
		return MetricRequest{}, fmt.Errorf("%w: %q", ErrTopicForeignRoot, topic)
	}
	for i, segment := range rootParts {
		if parts[i] != segment {
			return MetricRequest{}, fmt.Errorf("%w: %q", ErrTopicForeignRoot, topic)
		}
	}
	group := rootParts[len(rootParts)-1]
	middle := parts[len(rootParts) : len(parts)-1]
	if len(middle) == 0 {
		return MetricRequest{
			Topic:       normalized,
			Root:        normalizedRoot,
			Metric:      group,
			IsAggregate: true,
		}, nil
	}
	metric := strings.Join(middle, ".")
	aggregate := false
	if len(middle) == 1 {
		_, known := AggregateGroups[middle[0]]
		aggregate = known || middle[0] == group
	}
	return MetricRequest{
		Topic:       normalized,
		Root:        normalizedRoot,
		Metric:      metric,
		IsAggregate: aggregate,
	}, nil
}
