package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	liststrings "onboarding/pkg/platform/strings"
)

// Server captures process-level configuration. Every field is sourced from the
// environment so main stays lean.
type Server struct {
	Addr          string
	AdminAPIToken string
	LogLevel      string
	LogFormat     string
	DatabaseURL   string

	Redis        RedisConfig
	Kafka        KafkaConfig
	Trial        TrialConfig
	Terraform    TerraformConfig
	Provisioning ProvisioningConfig
	DFM          DFMConfig
	Worker       WorkerCredentials
	SMTP         SMTPConfig
}

// RedisConfig configures the optional Redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures lifecycle event publishing. No brokers means events are
// only logged.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// TrialConfig drives reminder computation.
type TrialConfig struct {
	Days         int
	ReminderDays []int
	FireHour     int
	FireMinute   int
	CycleCron    string
	Grace        time.Duration
	Location     *time.Location
}

// TerraformConfig locates the external tool and its working directories.
type TerraformConfig struct {
	Binary        string
	TemplateDir   string
	WorkspaceRoot string
	StepTimeout   time.Duration
}

// ProvisioningConfig sizes the background provisioning queue.
type ProvisioningConfig struct {
	Workers   int
	QueueSize int
}

// DFMConfig configures the secondary management API used for bootstrap.
type DFMConfig struct {
	BaseURL       string
	AdminUser     string
	AdminPassword string
	Timeout       time.Duration
	Warmup        time.Duration
}

// WorkerCredentials are the default admin credentials of provisioned worker
// nodes, mailed to the registrant.
type WorkerCredentials struct {
	User     string
	Password string
}

// SMTPConfig configures the mail transport.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:          envOr("ONBOARDING_ADDR", ":3000"),
		AdminAPIToken: os.Getenv("ADMIN_API_TOKEN"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		LogFormat:     envOr("LOG_FORMAT", "json"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: liststrings.SplitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOr("KAFKA_TOPIC", "onboarding.lifecycle"),
		},
		Terraform: TerraformConfig{
			Binary:        envOr("TERRAFORM_BIN", "terraform"),
			TemplateDir:   envOr("TERRAFORM_TEMPLATE_DIR", "./terraform/base"),
			WorkspaceRoot: envOr("TERRAFORM_WORKSPACE_ROOT", "./infraRegistrations"),
		},
		DFM: DFMConfig{
			BaseURL:       os.Getenv("DFM_BASE_URL"),
			AdminUser:     envOr("DFM_DEFAULT_ADMIN_USER", "admin"),
			AdminPassword: envOr("DFM_DEFAULT_ADMIN_PASS", "admin@123"),
		},
		Worker: WorkerCredentials{
			User:     envOr("NIFI_DEFAULT_ADMIN_USER", "admin"),
			Password: envOr("NIFI_DEFAULT_ADMIN_PASS", "adminpass1234"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
		},
	}
	cfg.SMTP.From = envOr("SMTP_FROM", cfg.SMTP.User)

	var err error
	if cfg.SMTP.Port, err = intEnv("SMTP_PORT", 587); err != nil {
		return Server{}, err
	}
	if cfg.Terraform.StepTimeout, err = durationEnv("TERRAFORM_STEP_TIMEOUT", 30*time.Minute); err != nil {
		return Server{}, err
	}
	if cfg.Provisioning.Workers, err = intEnv("PROVISION_WORKERS", 4); err != nil {
		return Server{}, err
	}
	if cfg.Provisioning.QueueSize, err = intEnv("PROVISION_QUEUE", 64); err != nil {
		return Server{}, err
	}
	if cfg.DFM.Timeout, err = durationEnv("DFM_TIMEOUT", 10*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.DFM.Warmup, err = durationEnv("BOOTSTRAP_WARMUP", 35*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Trial, err = trialFromEnv(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func trialFromEnv() (TrialConfig, error) {
	days, err := intEnv("APP_TRIAL_DAYS", 15)
	if err != nil {
		return TrialConfig{}, err
	}
	if days <= 0 {
		return TrialConfig{}, fmt.Errorf("APP_TRIAL_DAYS must be positive, got %d", days)
	}
	reminderDays, err := ParseReminderDays(envOr("APP_REMINDER_DAYS", "5,3,1"), days)
	if err != nil {
		return TrialConfig{}, err
	}
	hour, minute, err := parseClock(envOr("REMINDER_FIRE_AT", "13:59"))
	if err != nil {
		return TrialConfig{}, err
	}
	grace, err := durationEnv("REMINDER_GRACE", 15*time.Minute)
	if err != nil {
		return TrialConfig{}, err
	}
	loc, err := time.LoadLocation(envOr("REMINDER_TZ", "Local"))
	if err != nil {
		return TrialConfig{}, fmt.Errorf("REMINDER_TZ: %w", err)
	}
	return TrialConfig{
		Days:         days,
		ReminderDays: reminderDays,
		FireHour:     hour,
		FireMinute:   minute,
		CycleCron:    envOr("REMINDER_CYCLE_CRON", "0 14 * * *"),
		Grace:        grace,
		Location:     loc,
	}, nil
}

// ParseReminderDays parses a comma-separated list of days-before-expiry.
// Values must be positive, strictly less than trialDays, and are returned
// deduplicated in descending order (earliest reminder first).
func ParseReminderDays(csv string, trialDays int) ([]int, error) {
	parts := liststrings.SplitList(csv)
	if len(parts) == 0 {
		return nil, fmt.Errorf("reminder days: empty list")
	}
	days := make([]int, 0, len(parts))
	seen := make(map[int]struct{}, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("reminder days: %q is not an integer", p)
		}
		if d <= 0 || d >= trialDays {
			return nil, fmt.Errorf("reminder days: %d outside (0, %d)", d, trialDays)
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(days)))
	return days, nil
}

func parseClock(v string) (int, int, error) {
	hh, mm, ok := strings.Cut(v, ":")
	if !ok {
		return 0, 0, fmt.Errorf("REMINDER_FIRE_AT: %q is not HH:MM", v)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("REMINDER_FIRE_AT: invalid hour %q", hh)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("REMINDER_FIRE_AT: invalid minute %q", mm)
	}
	return hour, minute, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
