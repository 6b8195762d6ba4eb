package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenAddr string

	DBPath            string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	SessionCookieName   string
	SessionIdleMinutes  int
	SessionAbsoluteHour int
	CookieSecure        bool
	TrustProxy          bool
	CORSAllowedOrigins  []string

	// Shared secret presented by the chat gateway on employee routes.
	GatewayToken string

	AutoApproveMaxRank int
	DefaultEventRank   int
	MinIngestScore     int

	ClassifierURL        string
	ClassifierToken      string
	ClassifierTimeoutSec int

	ScanSources      []string
	ScanIntervalMin  int
	PartnerIMAPHost  string
	PartnerIMAPPort  int
	PartnerIMAPUser  string
	PartnerIMAPPass  string
	PartnerIMAPBox   string
	PartnerIMAPTLS   bool
	PartnerIMAPSkipV bool

	NotifySender     string
	TelegramBotToken string

	InviteFrom string

	DirectoryDriver string
	DirectoryDSN    string
	DirectoryTable  string

	HTTPReadTimeoutSec       int
	HTTPReadHeaderTimeoutSec int
	HTTPWriteTimeoutSec      int
	HTTPIdleTimeoutSec       int

	BootstrapOwnerExternalID string
	BootstrapOwnerUsername   string
	BootstrapOwnerPassword   string
}

func Load() (Config, error) {
	cfg := Config{
		ListenAddr:               env("LISTEN_ADDR", ":8080"),
		DBPath:                   env("APP_DB_PATH", "./data/app.db"),
		DBMaxOpenConns:           envInt("APP_DB_MAX_OPEN_CONNS", 4),
		DBMaxIdleConns:           envInt("APP_DB_MAX_IDLE_CONNS", 2),
		DBConnMaxLifetime:        time.Duration(envInt("APP_DB_CONN_MAX_LIFETIME_MIN", 30)) * time.Minute,
		SessionCookieName:        env("SESSION_COOKIE_NAME", "eventdesk_session"),
		SessionIdleMinutes:       envInt("SESSION_IDLE_MINUTES", 30),
		SessionAbsoluteHour:      envInt("SESSION_ABSOLUTE_HOURS", 24),
		CookieSecure:             envBool("COOKIE_SECURE", false),
		TrustProxy:               envBool("TRUST_PROXY", false),
		CORSAllowedOrigins:       envCSV("CORS_ALLOWED_ORIGINS"),
		GatewayToken:             env("GATEWAY_TOKEN", ""),
		AutoApproveMaxRank:       envInt("AUTO_APPROVE_MAX_RANK", 2),
		DefaultEventRank:         envInt("DEFAULT_EVENT_RANK", 1),
		MinIngestScore:           envInt("MIN_INGEST_SCORE", 40),
		ClassifierURL:            env("CLASSIFIER_URL", ""),
		ClassifierToken:          env("CLASSIFIER_TOKEN", ""),
		ClassifierTimeoutSec:     envInt("CLASSIFIER_TIMEOUT_SEC", 30),
		ScanSources:              envCSV("SCAN_SOURCES"),
		ScanIntervalMin:          envInt("SCAN_INTERVAL_MIN", 0),
		PartnerIMAPHost:          env("PARTNER_IMAP_HOST", ""),
		PartnerIMAPPort:          envInt("PARTNER_IMAP_PORT", 993),
		PartnerIMAPUser:          env("PARTNER_IMAP_USER", ""),
		PartnerIMAPPass:          env("PARTNER_IMAP_PASS", ""),
		PartnerIMAPBox:           env("PARTNER_IMAP_MAILBOX", "INBOX"),
		PartnerIMAPTLS:           envBool("PARTNER_IMAP_TLS", true),
		PartnerIMAPSkipV:         envBool("PARTNER_IMAP_INSECURE_SKIP_VERIFY", false),
		NotifySender:             strings.ToLower(env("NOTIFY_SENDER", "log")),
		TelegramBotToken:         env("TELEGRAM_BOT_TOKEN", ""),
		InviteFrom:               env("INVITE_FROM", "events@example.com"),
		DirectoryDriver:          env("DIRECTORY_DB_DRIVER", ""),
		DirectoryDSN:             env("DIRECTORY_DB_DSN", ""),
		DirectoryTable:           env("DIRECTORY_TABLE", "employees"),
		HTTPReadTimeoutSec:       envInt("HTTP_READ_TIMEOUT_SEC", 10),
		HTTPReadHeaderTimeoutSec: envInt("HTTP_READ_HEADER_TIMEOUT_SEC", 5),
		HTTPWriteTimeoutSec:      envInt("HTTP_WRITE_TIMEOUT_SEC", 30),
		HTTPIdleTimeoutSec:       envInt("HTTP_IDLE_TIMEOUT_SEC", 60),
		BootstrapOwnerExternalID: env("BOOTSTRAP_OWNER_EXTERNAL_ID", ""),
		BootstrapOwnerUsername:   env("BOOTSTRAP_OWNER_USERNAME", "owner"),
		BootstrapOwnerPassword:   env("BOOTSTRAP_OWNER_PASSWORD", ""),
	}

	if cfg.SessionIdleMinutes <= 0 || cfg.SessionAbsoluteHour <= 0 {
		return Config{}, fmt.Errorf("session timeouts must be positive")
	}
	if cfg.DBMaxOpenConns <= 0 || cfg.DBMaxIdleConns < 0 {
		return Config{}, fmt.Errorf("invalid DB pool config")
	}
	if cfg.AutoApproveMaxRank < 0 || cfg.AutoApproveMaxRank > 5 {
		return Config{}, fmt.Errorf("AUTO_APPROVE_MAX_RANK must be in [0,5]")
	}
	if cfg.DefaultEventRank < 1 || cfg.DefaultEventRank > 5 {
		return Config{}, fmt.Errorf("DEFAULT_EVENT_RANK must be in [1,5]")
	}
	if cfg.MinIngestScore < 0 || cfg.MinIngestScore > 100 {
		return Config{}, fmt.Errorf("MIN_INGEST_SCORE must be in [0,100]")
	}
	switch cfg.NotifySender {
	case "log":
	case "telegram":
		if strings.TrimSpace(cfg.TelegramBotToken) == "" {
			return Config{}, fmt.Errorf("TELEGRAM_BOT_TOKEN is required when NOTIFY_SENDER=telegram")
		}
	default:
		return Config{}, fmt.Errorf("NOTIFY_SENDER must be one of: log, telegram")
	}
	switch cfg.DirectoryDriver {
	case "", "pgx", "mysql":
	default:
		return Config{}, fmt.Errorf("DIRECTORY_DB_DRIVER must be one of: pgx, mysql")
	}
	if cfg.DirectoryDriver != "" && strings.TrimSpace(cfg.DirectoryDSN) == "" {
		return Config{}, fmt.Errorf("DIRECTORY_DB_DSN is required when DIRECTORY_DB_DRIVER is set")
	}
	if cfg.PartnerIMAPHost != "" && (cfg.PartnerIMAPUser == "" || cfg.PartnerIMAPPass == "") {
		return Config{}, fmt.Errorf("PARTNER_IMAP_USER and PARTNER_IMAP_PASS are required when PARTNER_IMAP_HOST is set")
	}
	if cfg.PartnerIMAPPort <= 0 {
		return Config{}, fmt.Errorf("invalid PARTNER_IMAP_PORT")
	}
	return cfg, nil
}

func (c Config) SessionIdleDuration() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

func (c Config) SessionAbsoluteDuration() time.Duration {
	return time.Duration(c.SessionAbsoluteHour) * time.Hour
}

func (c Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.ClassifierTimeoutSec) * time.Second
}

func env(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return d
	}
	return b
}

func envCSV(k string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
