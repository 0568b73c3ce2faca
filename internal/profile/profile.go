package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where recorda stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// Timezone is the IANA timezone used to compute "now" for local
	// date matchers and reminder scheduling.
	Timezone string

	// EventAdvance is how long before an event its reminder fires.
	EventAdvance time.Duration
	// ClampGrace is how far past-due fire times are pushed into the future.
	ClampGrace time.Duration

	// LLM configuration
	OpenAIAPIKey  string // RECORDA_OPENAI_API_KEY
	OpenAIBaseURL string // RECORDA_OPENAI_BASE_URL (default: https://api.openai.com/v1)
	LLMModel      string // RECORDA_LLM_MODEL (default: gpt-4o-mini)
	// FunctionCatalogPath points to the JSON file describing the functions
	// exposed to the model.
	FunctionCatalogPath string

	// WhatsApp Graph API configuration
	WhatsAppAccessToken   string // RECORDA_WA_ACCESS_TOKEN
	WhatsAppPhoneNumberID string // RECORDA_WA_PHONE_NUMBER_ID
	WhatsAppVerifyToken   string // RECORDA_WA_VERIFY_TOKEN
	WhatsAppAppSecret     string // RECORDA_WA_APP_SECRET
	WhatsAppAPIVersion    string // RECORDA_WA_API_VERSION (default: v23.0)

	// Weather lookup (SerpAPI)
	SerpAPIKey      string // RECORDA_SERPAPI_KEY
	SerpAPILocation string // RECORDA_SERPAPI_LOCATION (default: Montevideo, Uruguay)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from RECORDA_* environment variables.
func (p *Profile) FromEnv() {
	getDurationEnv := func(key string, defaultValue, bareUnit time.Duration) time.Duration {
		val := os.Getenv(key)
		if val == "" {
			return defaultValue
		}
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
		// Bare numbers are scaled by the unit natural to each variable:
		// minutes for the reminder advance, seconds for the clamp grace.
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return time.Duration(n) * bareUnit
		}
		slog.Warn("invalid duration in environment, using default", "key", key, "value", val)
		return defaultValue
	}

	p.Timezone = getEnvOrDefault("RECORDA_TIMEZONE", "America/Montevideo")
	p.EventAdvance = getDurationEnv("RECORDA_EVENT_ADVANCE", time.Minute, time.Minute)
	p.ClampGrace = getDurationEnv("RECORDA_CLAMP_GRACE", 10*time.Second, time.Second)

	p.OpenAIAPIKey = os.Getenv("RECORDA_OPENAI_API_KEY")
	p.OpenAIBaseURL = getEnvOrDefault("RECORDA_OPENAI_BASE_URL", "https://api.openai.com/v1")
	p.LLMModel = getEnvOrDefault("RECORDA_LLM_MODEL", "gpt-4o-mini")
	p.FunctionCatalogPath = getEnvOrDefault("RECORDA_FUNCTION_CATALOG", "functions_catalog.json")

	p.WhatsAppAccessToken = os.Getenv("RECORDA_WA_ACCESS_TOKEN")
	p.WhatsAppPhoneNumberID = os.Getenv("RECORDA_WA_PHONE_NUMBER_ID")
	p.WhatsAppVerifyToken = os.Getenv("RECORDA_WA_VERIFY_TOKEN")
	p.WhatsAppAppSecret = os.Getenv("RECORDA_WA_APP_SECRET")
	p.WhatsAppAPIVersion = getEnvOrDefault("RECORDA_WA_API_VERSION", "v23.0")

	p.SerpAPIKey = os.Getenv("RECORDA_SERPAPI_KEY")
	p.SerpAPILocation = getEnvOrDefault("RECORDA_SERPAPI_LOCATION", "Montevideo, Uruguay")
}

// Location resolves the configured timezone, falling back to the system
// local zone when the name cannot be loaded.
func (p *Profile) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		slog.Warn("failed to load timezone, falling back to local", "timezone", p.Timezone, "error", err)
		return time.Local
	}
	return loc
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unknown db driver %q: only 'sqlite' and 'postgres' are supported", p.Driver)
	}

	if p.Mode == "prod" && p.Data == "" {
		p.Data = "/var/opt/recorda"
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("recorda_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a DSN")
	}

	if p.EventAdvance <= 0 {
		p.EventAdvance = time.Minute
	}
	if p.ClampGrace <= 0 {
		p.ClampGrace = 10 * time.Second
	}

	return nil
}
