package domain

import "errors"

// Device session errors.
var (
	// ErrAuthentication indicates a failed or missing modem login.
	ErrAuthentication = errors.New("authentication failed")
	// ErrRequest indicates a transport-level failure talking to the modem.
	ErrRequest = errors.New("device request failed")
	// ErrTimeout indicates the modem did not answer within the client timeout.
	ErrTimeout = errors.New("device request timed out")
	// ErrResponseParse indicates the modem answered with an undecodable body.
	ErrResponseParse = errors.New("device response malformed")
)

// Metric resolution errors.
var (
	ErrUnknownMetric     = errors.New("unknown metric")
	ErrMetricUnavailable = errors.New("metric missing from device payload")
	ErrEmptyResult       = errors.New("metric produced empty result")
)

// Topic errors.
var (
	ErrTopicEmpty       = errors.New("topic cannot be empty")
	ErrTopicMalformed   = errors.New("request topic malformed")
	ErrTopicForeignRoot = errors.New("request topic outside configured root")
)

// Publish contract errors. The bridge only ever publishes QoS 0,
// non-retained messages.
var (
	ErrQoSUnsupported    = errors.New("publish qos must be 0")
	ErrRetainUnsupported = errors.New("publish retain flag must be false")
)

// Transport errors.
var ErrNotConnected = errors.New("broker not connected")

// Configuration errors.
var (
	ErrDeviceHostRequired     = errors.New("device host is required")
	ErrDevicePasswordRequired = errors.New("device password is required")
	ErrDeviceHostNotLocal     = errors.New("device host must be a private or loopback address")
	ErrBrokerHostRequired     = errors.New("broker host is required")
	ErrBrokerHostScheme       = errors.New("broker host must not include a protocol scheme")
	ErrBrokerHostNotLocal     = errors.New("broker host must be a private or loopback address")
	ErrBrokerPortInvalid      = errors.New("broker port must be in the range 1-65535")
)
