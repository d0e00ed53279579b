package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/couchcryptid/storm-claims-risk/internal/domain"
	"github.com/couchcryptid/storm-claims-risk/internal/hazard"
)

// Claim sources.
const (
	SourceFile  = "file"
	SourceKafka = "kafka"
)

// Config holds all service settings, populated from environment variables
// and an optional config file named by CONFIG_FILE.
type Config struct {
	Source      string
	ClaimsPath  string
	ClaimsSheet string

	KafkaBrokers          []string
	KafkaSourceTopic      string
	KafkaSourcePartitions int
	KafkaSinkTopic        string
	KafkaSinkEnabled      bool

	WorkbookPath string

	HTTPAddr        string
	LogLevel        slog.Level
	LogFormat       string
	ShutdownTimeout time.Duration
	RunInterval     time.Duration

	// Analysis scope.
	HazardCategory domain.HazardCategory
	LossMetric     domain.LossMetric
	ExcludeEvents  []string
	ExcludeYears   []int
	EpochSplitYear int
	TopEvents      int

	// Model settings.
	LogBase         hazard.LogBase
	TiePolicy       hazard.TiePolicy
	Thresholds      []float64
	HorizonYears    float64
	KMax            int
	DomainMin       float64
	DomainMax       float64
	DomainPoints    int
	ConfidenceLevel float64
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SOURCE", SourceFile)
	v.SetDefault("CLAIMS_PATH", "data/sheldus/claims.csv")
	v.SetDefault("CLAIMS_SHEET", "")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_SOURCE_TOPIC", "sheldus-claims")
	v.SetDefault("KAFKA_SOURCE_PARTITIONS", 0)
	v.SetDefault("KAFKA_SINK_TOPIC", "claims-risk-reports")
	v.SetDefault("KAFKA_SINK_ENABLED", false)
	v.SetDefault("WORKBOOK_PATH", "")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("RUN_INTERVAL", "0s")
	v.SetDefault("HAZARD_CATEGORY", "")
	v.SetDefault("LOSS_METRIC", string(domain.MetricTotal))
	v.SetDefault("EXCLUDE_EVENTS", strings.Join(domain.DefaultExcludedEvents, ","))
	v.SetDefault("EXCLUDE_YEARS", "")
	v.SetDefault("EPOCH_SPLIT_YEAR", 1991)
	v.SetDefault("TOP_EVENTS", 10)
	v.SetDefault("LOG_BASE", "ln")
	v.SetDefault("TIE_POLICY", "average")
	v.SetDefault("THRESHOLDS", "25,50,100,150")
	v.SetDefault("HORIZON_YEARS", 100)
	v.SetDefault("K_MAX", 49)
	v.SetDefault("DOMAIN_MIN", 1)
	v.SetDefault("DOMAIN_MAX", 100)
	v.SetDefault("DOMAIN_POINTS", 1000)
	v.SetDefault("CONFIDENCE_LEVEL", 0.95)
}

// Load reads configuration from environment variables, applying defaults
// where unset. When CONFIG_FILE is set, that file (any format viper reads)
// supplies values that environment variables still override.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read CONFIG_FILE %s: %w", path, err)
		}
	}

	p := &parser{v: v}
	cfg := &Config{
		Source:                strings.ToLower(p.str("SOURCE")),
		ClaimsPath:            p.str("CLAIMS_PATH"),
		ClaimsSheet:           p.str("CLAIMS_SHEET"),
		KafkaBrokers:          ParseBrokers(p.str("KAFKA_BROKERS")),
		KafkaSourceTopic:      p.str("KAFKA_SOURCE_TOPIC"),
		KafkaSourcePartitions: p.integer("KAFKA_SOURCE_PARTITIONS"),
		KafkaSinkTopic:        p.str("KAFKA_SINK_TOPIC"),
		KafkaSinkEnabled:      p.boolean("KAFKA_SINK_ENABLED"),
		WorkbookPath:          p.str("WORKBOOK_PATH"),
		HTTPAddr:              p.str("HTTP_ADDR"),
		LogLevel:              p.level("LOG_LEVEL"),
		LogFormat:             strings.ToLower(p.str("LOG_FORMAT")),
		ShutdownTimeout:       p.duration("SHUTDOWN_TIMEOUT"),
		RunInterval:           p.duration("RUN_INTERVAL"),
		HazardCategory:        p.category("HAZARD_CATEGORY"),
		LossMetric:            p.metric("LOSS_METRIC"),
		ExcludeEvents:         p.list("EXCLUDE_EVENTS"),
		ExcludeYears:          p.ints("EXCLUDE_YEARS"),
		EpochSplitYear:        p.integer("EPOCH_SPLIT_YEAR"),
		TopEvents:             p.integer("TOP_EVENTS"),
		LogBase:               p.logBase("LOG_BASE"),
		TiePolicy:             p.tiePolicy("TIE_POLICY"),
		Thresholds:            p.floats("THRESHOLDS"),
		HorizonYears:          p.float("HORIZON_YEARS"),
		KMax:                  p.integer("K_MAX"),
		DomainMin:             p.float("DOMAIN_MIN"),
		DomainMax:             p.float("DOMAIN_MAX"),
		DomainPoints:          p.integer("DOMAIN_POINTS"),
		ConfidenceLevel:       p.float("CONFIDENCE_LEVEL"),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints and value ranges.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceFile:
		if c.ClaimsPath == "" {
			return errors.New("CLAIMS_PATH is required when SOURCE is file")
		}
	case SourceKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when SOURCE is kafka")
		}
		if c.KafkaSourceTopic == "" {
			return errors.New("KAFKA_SOURCE_TOPIC is required when SOURCE is kafka")
		}
	default:
		return fmt.Errorf("invalid SOURCE %q: must be %s or %s", c.Source, SourceFile, SourceKafka)
	}
	if c.KafkaSourcePartitions < 0 {
		return errors.New("invalid KAFKA_SOURCE_PARTITIONS: must not be negative")
	}
	if c.KafkaSinkEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_SINK_ENABLED is true but KAFKA_BROKERS is not set")
		}
		if c.KafkaSinkTopic == "" {
			return errors.New("KAFKA_SINK_ENABLED is true but KAFKA_SINK_TOPIC is not set")
		}
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("invalid LOG_FORMAT %q: must be json or text", c.LogFormat)
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("invalid SHUTDOWN_TIMEOUT: must be positive")
	}
	if c.RunInterval < 0 {
		return errors.New("invalid RUN_INTERVAL: must not be negative")
	}
	if c.EpochSplitYear < 1000 || c.EpochSplitYear > 9999 {
		return fmt.Errorf("invalid EPOCH_SPLIT_YEAR %d", c.EpochSplitYear)
	}
	if c.TopEvents < 0 {
		return errors.New("invalid TOP_EVENTS: must not be negative")
	}
	if len(c.Thresholds) == 0 {
		return errors.New("THRESHOLDS is required")
	}
	for _, t := range c.Thresholds {
		if !(t > 0) {
			return fmt.Errorf("invalid THRESHOLDS value %v: must be positive", t)
		}
	}
	if !(c.HorizonYears > 0) {
		return errors.New("invalid HORIZON_YEARS: must be positive")
	}
	if c.KMax < 1 {
		return errors.New("invalid K_MAX: must be at least 1")
	}
	if !(c.DomainMin > 0) || !(c.DomainMax > c.DomainMin) {
		return errors.New("invalid DOMAIN_MIN/DOMAIN_MAX: need 0 < DOMAIN_MIN < DOMAIN_MAX")
	}
	if c.DomainPoints < 2 {
		return errors.New("invalid DOMAIN_POINTS: must be at least 2")
	}
	if !(c.ConfidenceLevel > 0 && c.ConfidenceLevel < 1) {
		return errors.New("invalid CONFIDENCE_LEVEL: must be between 0 and 1")
	}
	return nil
}

// Model builds the hazard model described by the configuration.
func (c *Config) Model() (hazard.Model, error) {
	grid, err := hazard.LinearDomain(c.DomainMin, c.DomainMax, c.DomainPoints)
	if err != nil {
		return hazard.Model{}, fmt.Errorf("evaluation domain: %w", err)
	}
	return hazard.Model{
		Base:            c.LogBase,
		Ties:            c.TiePolicy,
		Domain:          grid,
		ConfidenceLevel: c.ConfidenceLevel,
		Thresholds:      c.Thresholds,
		HorizonYears:    c.HorizonYears,
		Ks:              hazard.KRange(1, c.KMax),
	}, nil
}

// ClaimFilter builds the claim filter described by the configuration.
func (c *Config) ClaimFilter() domain.ClaimFilter {
	return domain.ClaimFilter{Category: c.HazardCategory, ExcludeEvents: c.ExcludeEvents}
}

// ParseBrokers splits a comma-separated broker list, dropping blanks.
func ParseBrokers(s string) []string {
	return splitList(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser reads typed values from viper, keeping the first error. Each
// error names the offending variable.
type parser struct {
	v   *viper.Viper
	err error
}

func (p *parser) fail(key string, raw any, cause error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, fmt.Sprint(raw), cause)
	}
}

func (p *parser) str(key string) string {
	return strings.TrimSpace(p.v.GetString(key))
}

func (p *parser) integer(key string) int {
	raw := p.v.Get(key)
	n, err := cast.ToIntE(raw)
	if err != nil {
		p.fail(key, raw, err)
	}
	return n
}

func (p *parser) float(key string) float64 {
	raw := p.v.Get(key)
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		p.fail(key, raw, err)
	}
	return f
}

func (p *parser) boolean(key string) bool {
	raw := p.v.Get(key)
	b, err := cast.ToBoolE(raw)
	if err != nil {
		p.fail(key, raw, err)
	}
	return b
}

func (p *parser) duration(key string) time.Duration {
	raw := p.v.Get(key)
	d, err := cast.ToDurationE(raw)
	if err != nil {
		p.fail(key, raw, err)
	}
	return d
}

// list accepts a comma-separated string or a list from a config file.
// "none" yields an empty list.
func (p *parser) list(key string) []string {
	raw := p.v.Get(key)
	if s, ok := raw.(string); ok {
		if strings.EqualFold(strings.TrimSpace(s), "none") {
			return nil
		}
		return splitList(s)
	}
	items, err := cast.ToStringSliceE(raw)
	if err != nil {
		p.fail(key, raw, err)
	}
	return items
}

func (p *parser) floats(key string) []float64 {
	items := p.list(key)
	out := make([]float64, 0, len(items))
	for _, item := range items {
		f, err := strconv.ParseFloat(item, 64)
		if err != nil {
			p.fail(key, item, err)
			return nil
		}
		out = append(out, f)
	}
	return out
}

func (p *parser) ints(key string) []int {
	items := p.list(key)
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, err := strconv.Atoi(item)
		if err != nil {
			p.fail(key, item, err)
			return nil
		}
		out = append(out, n)
	}
	return out
}

func (p *parser) level(key string) slog.Level {
	raw := p.str(key)
	var l slog.Level
	if err := l.UnmarshalText([]byte(raw)); err != nil {
		p.fail(key, raw, err)
	}
	return l
}

func (p *parser) category(key string) domain.HazardCategory {
	raw := p.str(key)
	c, ok := domain.ParseHazardCategory(raw)
	if !ok {
		p.fail(key, raw, errors.New("unknown hazard category"))
	}
	return c
}

func (p *parser) metric(key string) domain.LossMetric {
	raw := p.str(key)
	m, err := domain.ParseLossMetric(raw)
	if err != nil {
		p.fail(key, raw, err)
	}
	return m
}

func (p *parser) logBase(key string) hazard.LogBase {
	raw := p.str(key)
	b, err := hazard.ParseLogBase(raw)
	if err != nil {
		p.fail(key, raw, err)
	}
	return b
}

func (p *parser) tiePolicy(key string) hazard.TiePolicy {
	raw := p.str(key)
	t, err := hazard.ParseTiePolicy(raw)
	if err != nil {
		p.fail(key, raw, err)
	}
	return t
}
