// Package config loads and validates bot configuration from YAML or CLI flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"pullback-trading-bot/internal/domain"
)

const (
	// DefaultTrailingStopPercent is applied when the trailing stop is enabled
	// without an explicit distance.
	DefaultTrailingStopPercent = "2.0"
	// DefaultPollInterval is the strategy evaluation period.
	DefaultPollInterval = 30 * time.Second
	// DefaultListenAddr is where the status/event server binds.
	DefaultListenAddr = ":8080"
)

// Config holds one bot run's parameters. It is validated before a run starts
// and immutable during the run; changing it requires stop+restart.
type Config struct {
	Pair                domain.Pair
	PullbackPercent     decimal.Decimal
	ProfitTargetPercent decimal.Decimal
	UseEmaFilter        bool
	TrailingStopEnabled bool
	TrailingStopPercent decimal.Decimal
	PollInterval        time.Duration
	ListenAddr          string
	BaseURL             string
}

// ConfigTmp is the YAML shape of the config file. The setup wizard writes it
// and Get parses it into a validated Config.
type ConfigTmp struct {
	Pair                string        `yaml:"pair"`
	PullbackPercent     string        `yaml:"pullback_percent"`
	ProfitTargetPercent string        `yaml:"profit_target_percent"`
	UseEmaFilter        bool          `yaml:"use_ema_filter"`
	TrailingStop        bool          `yaml:"trailing_stop"`
	TrailingStopPercent string        `yaml:"trailing_stop_percent,omitempty"`
	PollInterval        time.Duration `yaml:"poll_interval,omitempty"`
	ListenAddr          string        `yaml:"listen_addr,omitempty"`
	BaseURL             string        `yaml:"base_url,omitempty"`
}

// Get reads configuration from the --config YAML file when provided,
// otherwise from CLI flags.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	pairFlag := flag.String("pair", "BTC_USDT", "trade pair, example: BTC_USDT")
	pullback := flag.String("pullback", "5", "pullback percent from the max price that triggers an entry")
	profit := flag.String("profit", "1", "profit target percent that triggers an exit")
	useEma := flag.Bool("ema", false, "require fast EMA above slow EMA for entries")
	trailing := flag.Bool("trailing", false, "enable trailing stop exits")
	trailingPercent := flag.String("trailingpercent", DefaultTrailingStopPercent, "trailing stop distance percent")
	poll := flag.Duration("pollinterval", DefaultPollInterval, "poll market price interval")
	listen := flag.String("listen", DefaultListenAddr, "status server listen address")
	baseURL := flag.String("baseurl", "", "exchange base URL (default testnet)")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	tmp := ConfigTmp{
		Pair:                *pairFlag,
		PullbackPercent:     *pullback,
		ProfitTargetPercent: *profit,
		UseEmaFilter:        *useEma,
		TrailingStop:        *trailing,
		TrailingStopPercent: *trailingPercent,
		PollInterval:        *poll,
		ListenAddr:          *listen,
		BaseURL:             *baseURL,
	}
	return fromTmp(tmp)
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, err
	}
	return fromTmp(tmp)
}

func fromTmp(tmp ConfigTmp) (Config, error) {
	pair, err := PairFromString(tmp.Pair)
	if err != nil {
		return Config{}, err
	}

	pullback, err := decimal.NewFromString(tmp.PullbackPercent)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'pullback_percent' param: %w", err)
	}
	profit, err := decimal.NewFromString(tmp.ProfitTargetPercent)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'profit_target_percent' param: %w", err)
	}

	if tmp.TrailingStopPercent == "" {
		tmp.TrailingStopPercent = DefaultTrailingStopPercent
	}
	trailingPercent, err := decimal.NewFromString(tmp.TrailingStopPercent)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'trailing_stop_percent' param: %w", err)
	}

	if tmp.PollInterval == 0 {
		tmp.PollInterval = DefaultPollInterval
	}
	if tmp.ListenAddr == "" {
		tmp.ListenAddr = DefaultListenAddr
	}

	cfg := Config{
		Pair:                pair,
		PullbackPercent:     pullback,
		ProfitTargetPercent: profit,
		UseEmaFilter:        tmp.UseEmaFilter,
		TrailingStopEnabled: tmp.TrailingStop,
		TrailingStopPercent: trailingPercent,
		PollInterval:        tmp.PollInterval,
		ListenAddr:          tmp.ListenAddr,
		BaseURL:             tmp.BaseURL,
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations that must never start a run.
func (c Config) Validate() error {
	if c.Pair.From == "" || c.Pair.To == "" {
		return fmt.Errorf("trade pair is required")
	}
	if c.PullbackPercent.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("pullback percent must be greater than zero, got %s", c.PullbackPercent)
	}
	if c.ProfitTargetPercent.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("profit target percent must be greater than zero, got %s", c.ProfitTargetPercent)
	}
	if c.TrailingStopPercent.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("trailing stop percent must be greater than zero, got %s", c.TrailingStopPercent)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

// PairFromString parses a BASE_QUOTE pair string.
func PairFromString(s string) (domain.Pair, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return domain.Pair{}, fmt.Errorf("invalid pair %q, expected format BTC_USDT", s)
	}
	return domain.Pair{From: parts[0], To: parts[1]}, nil
}
