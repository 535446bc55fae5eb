package jwt

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pilacorp/go-didjwt/jose"
	"gopkg.in/yaml.v3"
)

// Default values
const (
	DefaultSkewSeconds      = 300
	DefaultExpiresInSeconds = 300
	DefaultAlgorithm        = jose.ES256KR
)

// Config holds the engine settings that can be loaded from a file.
type Config struct {
	// SkewSeconds is the clock drift tolerated when checking iat and exp.
	// Unset selects DefaultSkewSeconds, 0 disables the tolerance.
	SkewSeconds *int64 `json:"skew_seconds,omitempty" yaml:"skew_seconds,omitempty"`
	// ExpiresInSeconds is the validity used by CreateJWT when the caller
	// passes no validity and the payload carries no exp.
	ExpiresInSeconds int64 `json:"expires_in_seconds,omitempty" yaml:"expires_in_seconds,omitempty"`
	// Algorithm is used by CreateJWT when no alg is given.
	Algorithm string `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
}

// NewConfig returns cfg with unset values replaced by defaults.
// Pass an empty Config{} to use all defaults.
func NewConfig(cfg Config) *Config {
	skew := int64(DefaultSkewSeconds)
	result := &Config{
		SkewSeconds:      &skew,
		ExpiresInSeconds: DefaultExpiresInSeconds,
		Algorithm:        DefaultAlgorithm.String(),
	}

	if cfg.SkewSeconds != nil {
		skew = *cfg.SkewSeconds
	}
	if cfg.ExpiresInSeconds != 0 {
		result.ExpiresInSeconds = cfg.ExpiresInSeconds
	}
	if cfg.Algorithm != "" {
		result.Algorithm = cfg.Algorithm
	}

	return result
}

// LoadConfig reads a YAML (or JSON) config file.
func LoadConfig(file string) (*Config, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.WithMessagef(err, "unable to read config")
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errors.WithMessagef(err, "unable to unmarshal %q", file)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "invalid config %q", file)
	}
	return NewConfig(cfg), nil
}

// Validate checks the values of the config.
func (c *Config) Validate() error {
	if c.SkewSeconds != nil && *c.SkewSeconds < 0 {
		return errors.Newf("skew_seconds must not be negative: %d", *c.SkewSeconds)
	}
	if c.Algorithm != "" {
		if _, err := jose.ParseAlgorithm(c.Algorithm); err != nil {
			return err
		}
	}
	return nil
}

// Skew returns SkewSeconds as a duration, DefaultSkewSeconds when unset.
func (c *Config) Skew() time.Duration {
	if c.SkewSeconds == nil {
		return DefaultSkewSeconds * time.Second
	}
	return time.Duration(*c.SkewSeconds) * time.Second
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the system time.
var SystemClock Clock = ClockFunc(time.Now)

// FixedClock returns a clock stopped at unix seconds.
func FixedClock(unix int64) Clock {
	t := time.Unix(unix, 0)
	return ClockFunc(func() time.Time { return t })
}
