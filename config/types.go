package config

import "fmt"

// ProviderConfig holds the credential and default model for one of the
// four supported model providers.
type ProviderConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_seconds"`
}

// Validate checks required fields and sane ranges.
func (c *ProviderConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}
	if c.TimeoutSecs < 0 {
		return fmt.Errorf("timeout_seconds must be non-negative")
	}
	return nil
}

// SetDefaults fills in zero-config fallbacks.
func (c *ProviderConfig) SetDefaults() {
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 60
	}
}

// Providers maps provider tag ("openai", "anthropic", "google", "glm") to
// its configuration.
type Providers struct {
	OpenAI    *ProviderConfig `yaml:"openai,omitempty"`
	Anthropic *ProviderConfig `yaml:"anthropic,omitempty"`
	Google    *ProviderConfig `yaml:"google,omitempty"`
	GLM       *ProviderConfig `yaml:"glm,omitempty"`
}

// Validate validates every configured provider.
func (p *Providers) Validate() error {
	for name, cfg := range p.all() {
		if cfg == nil {
			continue
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("provider '%s' validation failed: %w", name, err)
		}
	}
	return nil
}

// SetDefaults applies defaults to every configured provider.
func (p *Providers) SetDefaults() {
	for _, cfg := range p.all() {
		if cfg != nil {
			cfg.SetDefaults()
		}
	}
}

func (p *Providers) all() map[string]*ProviderConfig {
	return map[string]*ProviderConfig{
		"openai":    p.OpenAI,
		"anthropic": p.Anthropic,
		"google":    p.Google,
		"glm":       p.GLM,
	}
}

// MeetingDefaults holds fallback values applied to meetings created
// without an explicit config override.
type MeetingDefaults struct {
	MaxRounds        int    `yaml:"max_rounds"`
	MaxMessageLength int    `yaml:"max_message_length"`
	SpeakingOrder    string `yaml:"speaking_order"`
	DiscussionStyle  string `yaml:"discussion_style"`
}

// SetDefaults fills in zero-config fallbacks.
func (m *MeetingDefaults) SetDefaults() {
	if m.SpeakingOrder == "" {
		m.SpeakingOrder = "sequential"
	}
	if m.DiscussionStyle == "" {
		m.DiscussionStyle = "formal"
	}
	if m.MaxMessageLength == 0 {
		m.MaxMessageLength = 4000
	}
}

// Validate checks enum fields.
func (m *MeetingDefaults) Validate() error {
	switch m.SpeakingOrder {
	case "", "sequential", "random":
	default:
		return fmt.Errorf("speaking_order must be 'sequential' or 'random'")
	}
	switch m.DiscussionStyle {
	case "", "formal", "casual", "debate":
	default:
		return fmt.Errorf("discussion_style must be 'formal', 'casual', or 'debate'")
	}
	if m.MaxRounds < 0 {
		return fmt.Errorf("max_rounds must be non-negative")
	}
	return nil
}

// ServerConfig holds CLI/server-level settings.
type ServerConfig struct {
	DataDir   string `yaml:"data_dir"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// SetDefaults fills in zero-config fallbacks.
func (s *ServerConfig) SetDefaults() {
	if s.DataDir == "" {
		s.DataDir = "./data"
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.LogFormat == "" {
		s.LogFormat = "simple"
	}
}

// Validate checks required fields.
func (s *ServerConfig) Validate() error {
	if s.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	return nil
}

// Config is the top-level configuration document.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers Providers       `yaml:"providers"`
	Meetings  MeetingDefaults `yaml:"meetings"`
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Providers.SetDefaults()
	c.Meetings.SetDefaults()
}

// Validate validates every section.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config invalid: %w", err)
	}
	if err := c.Providers.Validate(); err != nil {
		return fmt.Errorf("providers config invalid: %w", err)
	}
	if err := c.Meetings.Validate(); err != nil {
		return fmt.Errorf("meetings config invalid: %w", err)
	}
	return nil
}
