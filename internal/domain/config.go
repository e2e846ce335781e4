package domain

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// DeviceConfig locates and authenticates the ZTE modem.
type DeviceConfig struct {
	// Host is the modem base URL. A bare host or IP gets an http:// scheme
	// during normalization.
	Host string `mapstructure:"host" yaml:"host"`
	// Password is the admin password used for the login digest exchange.
	Password string `mapstructure:"password" yaml:"password"`
}

// Normalize trims the host, defaults the scheme to http and strips any
// trailing slash.
func (c *DeviceConfig) Normalize() error {
	host := strings.TrimSpace(c.Host)
	if host == "" {
		return ErrDeviceHostRequired
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	c.Host = strings.TrimRight(host, "/")
	return nil
}

// Validate checks a normalized device configuration. Hosts given as IP
// addresses must be private or loopback; hostnames are assumed to resolve
// locally.
func (c DeviceConfig) Validate() error {
	if c.Password == "" {
		return ErrDevicePasswordRequired
	}
	if c.Host == "" {
		return ErrDeviceHostRequired
	}
	parsed, err := url.Parse(c.Host)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceHostRequired, err)
	}
	hostname := parsed.Hostname()
	if hostname == "" {
		return ErrDeviceHostRequired
	}
	if !isLocalAddress(hostname) {
		return fmt.Errorf("%w: %s", ErrDeviceHostNotLocal, hostname)
	}
	return nil
}

// BrokerConfig locates the MQTT broker and fixes the publish contract.
type BrokerConfig struct {
	// Host is the broker hostname or IP without a scheme.
	Host string `mapstructure:"host" yaml:"host"`
	// Port is the broker TCP port.
	Port int `mapstructure:"port" yaml:"port"`
	// Username and Password are optional broker credentials.
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	// RootTopic is the topic subtree the bridge serves.
	RootTopic string `mapstructure:"root_topic" yaml:"root_topic"`
	// QoS must be 0 and Retain must be false in this release.
	QoS    byte `mapstructure:"qos" yaml:"qos"`
	Retain bool `mapstructure:"retain" yaml:"retain"`
	// ReconnectInterval is the pause between reconnect cycles.
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval" yaml:"reconnect_interval"`
}

// Normalize trims the host and canonicalizes the root topic.
func (c *BrokerConfig) Normalize() error {
	c.Host = strings.TrimSpace(c.Host)
	if c.Host == "" {
		return ErrBrokerHostRequired
	}
	root, err := NormalizeTopic(c.RootTopic)
	if err != nil {
		return fmt.Errorf("root topic: %w", err)
	}
	c.RootTopic = root
	return nil
}

// Validate checks a normalized broker configuration.
func (c BrokerConfig) Validate() error {
	if c.Host == "" {
		return ErrBrokerHostRequired
	}
	if strings.Contains(c.Host, "://") {
		return ErrBrokerHostScheme
	}
	if c.Port <= 0 || c.Port >= 65536 {
		return fmt.Errorf("%w: got %d", ErrBrokerPortInvalid, c.Port)
	}
	if c.QoS != 0 {
		return fmt.Errorf("%w: got %d", ErrQoSUnsupported, c.QoS)
	}
	if c.Retain {
		return ErrRetainUnsupported
	}
	host := c.Host
	if idx := strings.Index(host, ":"); idx >= 0 {
		host = host[:idx]
	}
	if !isLocalAddress(host) {
		return fmt.Errorf("%w: %s", ErrBrokerHostNotLocal, host)
	}
	return nil
}

// URL renders the plaintext broker address for the MQTT client.
func (c BrokerConfig) URL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}

// isLocalAddress reports whether a host is acceptable for this release:
// hostnames pass through on the assumption of local DNS, IP addresses must
// be private or loopback.
func isLocalAddress(host string) bool {
	address := net.ParseIP(host)
	if address == nil {
		return true
	}
	return address.IsPrivate() || address.IsLoopback()
}
