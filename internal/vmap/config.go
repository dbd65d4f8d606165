package vmap

import (
	"os"
	"strconv"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvFallback     = "BORN_VMAP_FALLBACK"
	EnvFallbackWarn = "BORN_VMAP_FALLBACK_WARN"
)

// Stored inverted so the zero value means enabled.
var (
	fallbackDisabled        atomic.Bool
	fallbackWarningDisabled atomic.Bool
)

// SetFallbackEnabled turns the per-example loop fallback on or off for the process.
// When off, operators without a batching rule fail with ErrFallbackDisabled.
func SetFallbackEnabled(enabled bool) {
	fallbackDisabled.Store(!enabled)
}

// FallbackEnabled reports whether the fallback may run.
func FallbackEnabled() bool {
	return !fallbackDisabled.Load()
}

// SetFallbackWarningEnabled controls the performance warning logged when an
// operator first takes the fallback.
func SetFallbackWarningEnabled(enabled bool) {
	fallbackWarningDisabled.Store(!enabled)
}

// FallbackWarningEnabled reports whether the performance warning is logged.
func FallbackWarningEnabled() bool {
	return !fallbackWarningDisabled.Load()
}

// Config groups the process-wide fallback flags.
type Config struct {
	FallbackEnabled bool
	WarnOnFallback  bool
}

// DefaultConfig returns the configuration in effect at startup.
func DefaultConfig() Config {
	return Config{FallbackEnabled: true, WarnOnFallback: true}
}

// CurrentConfig returns the flags in effect.
func CurrentConfig() Config {
	return Config{FallbackEnabled: FallbackEnabled(), WarnOnFallback: FallbackWarningEnabled()}
}

// ConfigFromEnv starts from DefaultConfig and overrides it with EnvFallback and
// EnvFallbackWarn when set. Values are parsed with strconv.ParseBool.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	for _, entry := range []struct {
		name string
		dst  *bool
	}{
		{EnvFallback, &cfg.FallbackEnabled},
		{EnvFallbackWarn, &cfg.WarnOnFallback},
	} {
		text, found := os.LookupEnv(entry.name)
		if !found || text == "" {
			continue
		}
		v, err := strconv.ParseBool(text)
		if err != nil {
			return cfg, errors.Wrapf(err, "invalid value %q for $%s", text, entry.name)
		}
		*entry.dst = v
	}
	return cfg, nil
}

// Apply installs c as the process-wide configuration.
func (c Config) Apply() {
	SetFallbackEnabled(c.FallbackEnabled)
	SetFallbackWarningEnabled(c.WarnOnFallback)
}
