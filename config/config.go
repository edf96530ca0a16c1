package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // containers often ship without zoneinfo

	"medibot/types"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MaxUpcomingDays is the largest lookahead Doctolib accepts for the limit parameter
const MaxUpcomingDays = 15

const (
	DefaultBookingURL   = "https://www.doctolib.de/"
	DefaultUserAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	DefaultTimezone     = "Europe/Berlin"
	DefaultCron         = "*/10 * * * *"
	defaultUpcomingDays = MaxUpcomingDays
	defaultDelaySeconds = 3
	defaultTimeout      = 30
	defaultLockTTL      = 600
)

// ErrInvalidConfig wraps every configuration problem found by Load or Validate
var ErrInvalidConfig = errors.New("invalid configuration")

type TelegramConfig struct {
	BotToken    string `yaml:"bot_token" validate:"required"`
	ChatID      string `yaml:"chat_id" validate:"required"`
	APIEndpoint string `yaml:"api_endpoint"` // Format string with token and method placeholders
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level" validate:"oneof=trace debug info warn error"`
}

type RedisConfig struct {
	Addr           string `yaml:"addr"` // Empty disables the run lock
	Password       string `yaml:"password"`
	DB             int    `yaml:"db" validate:"min=0"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds" validate:"min=1"`
}

type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// Config is built once by Load and treated as read-only afterwards
type Config struct {
	Telegram            TelegramConfig `yaml:"telegram"`
	Doctors             []types.Doctor `yaml:"doctors" validate:"min=1"`
	UpcomingDays        int            `yaml:"upcoming_days" validate:"min=1,max=15"`
	NotifyHourly        bool           `yaml:"notify_hourly"`
	RequestDelaySeconds *int           `yaml:"request_delay_seconds"`
	TimeoutSeconds      int            `yaml:"timeout_seconds" validate:"min=1"`
	Timezone            string         `yaml:"timezone"`
	UserAgent           string         `yaml:"user_agent"`
	Log                 LogConfig      `yaml:"log"`
	Redis               RedisConfig    `yaml:"redis"`
	Schedule            ScheduleConfig `yaml:"schedule"`

	location *time.Location
	skipped  []string
}

// Load reads .env next to the config file, the YAML file itself and
// environment overrides, then validates the result
func Load(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if !filepath.IsAbs(cfg.Log.File) {
		cfg.Log.File = filepath.Join(filepath.Dir(configPath), cfg.Log.File)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML and rejects unknown keys
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: config file is empty", ErrInvalidConfig)
		}
		return nil, fmt.Errorf("%w: error parsing config file: %v", ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// applyEnv lets secrets live outside the YAML file
func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	override(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	override(&c.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	override(&c.Redis.Addr, "REDIS_ADDR")
	override(&c.Redis.Password, "REDIS_PASSWORD")
}

func (c *Config) applyDefaults() {
	if c.UpcomingDays == 0 {
		c.UpcomingDays = defaultUpcomingDays
	}
	if c.RequestDelaySeconds == nil {
		d := defaultDelaySeconds
		c.RequestDelaySeconds = &d
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = defaultTimeout
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Log.File == "" {
		c.Log.File = "medibot.log"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Redis.LockTTLSeconds == 0 {
		c.Redis.LockTTLSeconds = defaultLockTTL
	}
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = DefaultCron
	}
}

// Validate checks ranges and credentials, drops doctors without an
// availabilities_url and fills name and booking_url defaults
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, describe(verrs))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if _, err := ParseChatID(c.Telegram.ChatID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("%w: unknown timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	c.location = loc

	c.skipped = nil
	valid := make([]types.Doctor, 0, len(c.Doctors))
	for i, d := range c.Doctors {
		if strings.TrimSpace(d.AvailabilitiesURL) == "" {
			name := d.Name
			if name == "" {
				name = "unknown"
			}
			c.skipped = append(c.skipped, fmt.Sprintf("Doctor %d (%s) skipped: no availabilities_url", i+1, name))
			continue
		}
		if d.Name == "" {
			d.Name = fmt.Sprintf("Doctor %d", i+1)
		}
		if d.BookingURL == "" {
			d.BookingURL = DefaultBookingURL
		}
		valid = append(valid, d)
	}
	if len(valid) == 0 {
		return fmt.Errorf("%w: no valid doctors, at least one needs an availabilities_url", ErrInvalidConfig)
	}
	c.Doctors = valid

	return nil
}

// SkippedDoctors describes the doctors Validate dropped, in config order.
// Load runs before file logging is set up, so callers log these afterwards.
func (c *Config) SkippedDoctors() []string {
	return c.skipped
}

// HasCredentials reports whether a Telegram message can be attempted at all
func (c *Config) HasCredentials() bool {
	return c != nil && c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func (c *Config) RequestDelay() time.Duration {
	if c.RequestDelaySeconds == nil {
		return 0
	}
	return time.Duration(*c.RequestDelaySeconds) * time.Second
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Redis.LockTTLSeconds) * time.Second
}

// Location returns the timezone used for "today" and "now"
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// ParseChatID accepts a numeric chat id (negative for groups) or an @channel name
func ParseChatID(raw string) (ChatID, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "@") && len(raw) > 1 {
		return ChatID{Channel: raw}, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return ChatID{}, fmt.Errorf("telegram.chat_id %q is neither a number nor an @channel", raw)
	}
	return ChatID{ID: id}, nil
}

// ChatID is the parsed Telegram target
type ChatID struct {
	ID      int64
	Channel string
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func describe(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		switch {
		case fe.Tag() == "required":
			msgs = append(msgs, field+" is required")
		case field == "doctors" && fe.Tag() == "min":
			msgs = append(msgs, "no doctors configured")
		case fe.Tag() == "max":
			msgs = append(msgs, fmt.Sprintf("%s must not exceed %s", field, fe.Param()))
		case fe.Tag() == "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case fe.Tag() == "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
