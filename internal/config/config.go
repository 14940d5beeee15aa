package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"NeuralClient/internal/domain"
)

const defaultAPIURL = "http://localhost:5000/api"

type Config struct {
	Env        string
	LogLevel   string
	APIURL     *url.URL
	AuthScheme string

	HTTPTimeout          time.Duration
	PollInterval         time.Duration
	RequestsPollInterval time.Duration
	ChatPollInterval     time.Duration
	ToastTTL             time.Duration
	NotifyPreviewLen     int

	EndPolicy     domain.EndPolicy
	DefaultVolume float64

	StateDir             string
	Profile              string
	CredentialPassphrase string
	DBDSN                string

	MPDAddr     string
	MPDPassword string

	FCMCredentials string
	FCMProjectID   string
	FCMDeviceToken string
}

// Load reads the .env file named by APP_ENV_FILE (default .env) into the
// process environment and then parses it.
func Load() (Config, error) {
	path := os.Getenv("APP_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := LoadDotEnv(path); err != nil {
		return Config{}, err
	}
	return LoadFromEnv(os.Getenv)
}

// LoadDotEnv merges path into the process environment. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	return loadDotEnvFile(path, os.Setenv, os.Getenv)
}

// loadDotEnvFile never overrides a variable that is already set, and skips
// empty values.
func loadDotEnvFile(path string, setenv func(string, string) error, getenv func(string) string) error {
	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("APP_ENV_FILE: %w", err)
	}
	for k, v := range vars {
		if v == "" || getenv(k) != "" {
			continue
		}
		if err := setenv(k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:                  getenv("APP_ENV"),
		LogLevel:             getenv("APP_LOG_LEVEL"),
		AuthScheme:           strings.TrimSpace(getenv("APP_AUTH_SCHEME")),
		StateDir:             getenv("APP_STATE_DIR"),
		Profile:              strings.TrimSpace(getenv("APP_PROFILE")),
		CredentialPassphrase: getenv("APP_CREDENTIAL_PASSPHRASE"),
		DBDSN:                getenv("APP_DB_DSN"),
		MPDAddr:              strings.TrimSpace(getenv("APP_MPD_ADDR")),
		MPDPassword:          getenv("APP_MPD_PASSWORD"),
		FCMCredentials:       getenv("APP_FCM_CREDENTIALS"),
		FCMProjectID:         getenv("APP_FCM_PROJECT_ID"),
		FCMDeviceToken:       strings.TrimSpace(getenv("APP_FCM_DEVICE_TOKEN")),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}
	if cfg.Profile == "" {
		cfg.Profile = "default"
	}
	if strings.ContainsAny(cfg.Profile, `/\`) {
		return Config{}, errors.New("APP_PROFILE: must not contain path separators")
	}

	apiRaw := getenv("APP_API_URL")
	if apiRaw == "" {
		apiRaw = defaultAPIURL
	}
	parsed, err := url.Parse(apiRaw)
	if err != nil {
		return Config{}, fmt.Errorf("APP_API_URL: %w", err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return Config{}, errors.New("APP_API_URL: must be an absolute URL")
	}
	switch parsed.Scheme {
	case "http", "https":
	default:
		return Config{}, errors.New("APP_API_URL: scheme must be http or https")
	}
	cfg.APIURL = parsed

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"APP_HTTP_TIMEOUT", 30 * time.Second, &cfg.HTTPTimeout},
		{"APP_POLL_INTERVAL", 3 * time.Second, &cfg.PollInterval},
		{"APP_REQUESTS_POLL_INTERVAL", 3 * time.Second, &cfg.RequestsPollInterval},
		{"APP_CHAT_POLL_INTERVAL", 2 * time.Second, &cfg.ChatPollInterval},
		{"APP_TOAST_TTL", 3 * time.Second, &cfg.ToastTTL},
	}
	for _, d := range durations {
		v, err := parseDuration(getenv(d.key), d.def)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}

	cfg.NotifyPreviewLen = 30
	if raw := getenv("APP_NOTIFY_PREVIEW_LEN"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_NOTIFY_PREVIEW_LEN: %w", err)
		}
		if n <= 0 {
			return Config{}, errors.New("APP_NOTIFY_PREVIEW_LEN: must be > 0")
		}
		cfg.NotifyPreviewLen = n
	}

	switch policy := domain.EndPolicy(strings.ToLower(getenv("APP_PLAYBACK_END_POLICY"))); policy {
	case "":
		cfg.EndPolicy = domain.EndAdvance
	case domain.EndAdvance, domain.EndStop:
		cfg.EndPolicy = policy
	default:
		return Config{}, errors.New("APP_PLAYBACK_END_POLICY: must be advance or stop")
	}

	cfg.DefaultVolume = 1
	if raw := getenv("APP_DEFAULT_VOLUME"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Config{}, fmt.Errorf("APP_DEFAULT_VOLUME: %w", err)
		}
		if v < 0 || v > 1 {
			return Config{}, errors.New("APP_DEFAULT_VOLUME: must be within [0, 1]")
		}
		cfg.DefaultVolume = v
	}

	if cfg.StateDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		cfg.StateDir = filepath.Join(dir, "neural")
	}

	if cfg.FCMDeviceToken != "" && cfg.FCMCredentials == "" {
		return Config{}, errors.New("APP_FCM_CREDENTIALS: required when APP_FCM_DEVICE_TOKEN is set")
	}

	if cfg.IsProd() {
		if cfg.APIURL.Scheme != "https" {
			return Config{}, errors.New("APP_API_URL: must use https in prod")
		}
		if cfg.CredentialPassphrase == "" {
			return Config{}, errors.New("APP_CREDENTIAL_PASSPHRASE: required in prod")
		}
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func (c Config) ForwardsNotifications() bool { return c.FCMDeviceToken != "" }

func parseDuration(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be > 0")
	}
	return d, nil
}
