package router

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/geniusai/genius/pkg/llm"
	"github.com/geniusai/genius/pkg/provider"
)

// Strategy selects how cross-validation providers are consulted.
type Strategy string

const (
	// StrategySequential asks validators one at a time in order and stops at
	// the first non-empty answer.
	StrategySequential Strategy = "sequential"

	// StrategyRace asks every configured validator at once; the first
	// non-empty answer wins and the others are cancelled.
	StrategyRace Strategy = "race"
)

const (
	defaultDeadline = 7500 * time.Millisecond

	primaryMaxTokens     = 1500
	primaryTemperature   = 0.3
	validatorMaxTokens   = 500
	validatorTemperature = 0.1
)

// Config is the router configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	ListenAddr string

	// Deadline bounds the time from request receipt until the upstream
	// stream is open.
	Deadline time.Duration

	Strategy Strategy

	// RateLimit is the sustained number of chat requests per second allowed
	// per client IP. Zero disables limiting.
	RateLimit float64
	RateBurst int

	// Primary is the streaming provider. It must be OpenAI-framed.
	Primary provider.Config

	// Validators are consulted in order for cross-validated medicine turns.
	Validators []provider.Config

	// Prompts maps a mode to its system prompt.
	Prompts map[llm.Mode]string
}

// DefaultConfig returns the router configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		ListenAddr: ":8080",
		Deadline:   defaultDeadline,
		Strategy:   StrategySequential,
		RateBurst:  5,
		Primary: provider.Config{
			Kind:        provider.KindGateway,
			MaxTokens:   primaryMaxTokens,
			Temperature: primaryTemperature,
		}.WithDefaults(),
		Validators: []provider.Config{
			validatorDefaults(provider.KindOpenAI),
			validatorDefaults(provider.KindDeepSeek),
			validatorDefaults(provider.KindClaude),
			validatorDefaults(provider.KindGemini),
		},
		Prompts: map[llm.Mode]string{
			llm.ModeMedicine:     medicinePrompt,
			llm.ModeInformatique: informatiquePrompt,
		},
	}
}

func validatorDefaults(kind provider.Kind) provider.Config {
	return provider.Config{
		Kind:        kind,
		MaxTokens:   validatorMaxTokens,
		Temperature: validatorTemperature,
	}.WithDefaults()
}

// SystemPrompt returns override when set, else the prompt for mode, else the
// medicine prompt.
func (c Config) SystemPrompt(mode llm.Mode, override string) string {
	if override != "" {
		return override
	}
	if p, ok := c.Prompts[mode]; ok && p != "" {
		return p
	}
	return c.Prompts[llm.ModeMedicine]
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	var errs []error
	if c.Deadline <= 0 {
		errs = append(errs, errors.New("deadline must be positive"))
	}
	if c.Strategy != StrategySequential && c.Strategy != StrategyRace {
		errs = append(errs, fmt.Errorf("unknown strategy %q", c.Strategy))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("rate_limit must not be negative"))
	}
	if !c.Primary.Kind.StreamsOpenAIFrames() {
		errs = append(errs, fmt.Errorf("primary provider %q cannot stream OpenAI frames", c.Primary.Kind))
	}
	for i, v := range c.Validators {
		if !v.Kind.Known() {
			errs = append(errs, fmt.Errorf("validator %d: unknown kind %q", i, v.Kind))
		}
	}
	return errors.Join(errs...)
}

type fileProvider struct {
	Kind        provider.Kind `toml:"kind"`
	URL         string        `toml:"url"`
	Model       string        `toml:"model"`
	APIKeyEnv   string        `toml:"api_key_env"`
	MaxTokens   *int          `toml:"max_tokens"`
	Temperature *float64      `toml:"temperature"`
}

func (f fileProvider) merge(base provider.Config) provider.Config {
	base.Kind = f.Kind
	base.URL = f.URL
	base.Model = f.Model
	base.APIKeyEnv = f.APIKeyEnv
	if f.MaxTokens != nil {
		base.MaxTokens = *f.MaxTokens
	}
	if f.Temperature != nil {
		base.Temperature = *f.Temperature
	}
	return base.WithDefaults()
}

type fileConfig struct {
	Listen     string            `toml:"listen"`
	Deadline   *time.Duration    `toml:"deadline"`
	Strategy   Strategy          `toml:"strategy"`
	RateLimit  *float64          `toml:"rate_limit"`
	RateBurst  *int              `toml:"rate_burst"`
	Primary    *fileProvider     `toml:"primary"`
	Validators []fileProvider    `toml:"validators"`
	Prompts    map[string]string `toml:"prompts"`
}

// LoadConfig reads a TOML configuration file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	var raw fileConfig
	md, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("unknown config keys in %s: %v", path, undecoded)
	}

	cfg := DefaultConfig()
	if raw.Listen != "" {
		cfg.ListenAddr = raw.Listen
	}
	if raw.Deadline != nil {
		cfg.Deadline = *raw.Deadline
	}
	if raw.Strategy != "" {
		cfg.Strategy = raw.Strategy
	}
	if raw.RateLimit != nil {
		cfg.RateLimit = *raw.RateLimit
	}
	if raw.RateBurst != nil {
		cfg.RateBurst = *raw.RateBurst
	}
	if raw.Primary != nil {
		if raw.Primary.Kind == "" {
			raw.Primary.Kind = provider.KindGateway
		}
		cfg.Primary = raw.Primary.merge(provider.Config{
			MaxTokens:   primaryMaxTokens,
			Temperature: primaryTemperature,
		})
	}
	if md.IsDefined("validators") {
		cfg.Validators = make([]provider.Config, 0, len(raw.Validators))
		for _, v := range raw.Validators {
			cfg.Validators = append(cfg.Validators, v.merge(provider.Config{
				MaxTokens:   validatorMaxTokens,
				Temperature: validatorTemperature,
			}))
		}
	}
	for mode, prompt := range raw.Prompts {
		cfg.Prompts[llm.Mode(mode)] = prompt
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
