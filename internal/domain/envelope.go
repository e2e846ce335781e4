package domain

import "fmt"

// PublishEnvelope describes one outbound broker publish. Envelopes only
// exist in valid form: construction normalizes the topic and rejects any
// QoS or retain setting the bridge does not support.
type PublishEnvelope struct {
	Topic   string `json:"topic"`
	Payload []byte `json:"payload"`
	QoS     byte   `json:"qos"`
	Retain  bool   `json:"retain"`
}

// NewEnvelope builds a publish envelope, enforcing the QoS 0 non-retained
// publish contract.
func NewEnvelope(topic string, payload []byte, qos byte, retain bool) (PublishEnvelope, error) {
	normalized, err := NormalizeTopic(topic)
	if err != nil {
		return PublishEnvelope{}, err
	}
	if qos != 0 {
		return PublishEnvelope{}, fmt.Errorf("%w: got %d", ErrQoSUnsupported, qos)
	}
	if retain {
		return PublishEnvelope{}, ErrRetainUnsupported
	}
	return PublishEnvelope{Topic: normalized, Payload: payload}, nil
}
