package bastion

import "time"

// Config holds configuration for the Bastion engine.
type Config struct {
	// MaxScopeDepth is the maximum depth of the scope tree.
	// Defaults to 10.
	MaxScopeDepth int `json:"max_scope_depth,omitempty"`

	// CacheTTL is the time-to-live for cached decisions.
	// Zero means no caching.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`

	// EnableScopeRules enables scope-attached row filters during
	// evaluation. Defaults to true.
	EnableScopeRules *bool `json:"enable_scope_rules,omitempty"`

	// EnableAccessRules enables registry access rules during evaluation.
	// Defaults to true.
	EnableAccessRules *bool `json:"enable_access_rules,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	t := true
	return Config{
		MaxScopeDepth:     10,
		EnableScopeRules:  &t,
		EnableAccessRules: &t,
	}
}

func (c Config) scopeRulesEnabled() bool {
	return c.EnableScopeRules == nil || *c.EnableScopeRules
}

func (c Config) accessRulesEnabled() bool {
	return c.EnableAccessRules == nil || *c.EnableAccessRules
}
