package app

import "time"

// Bank backend selectors.
const (
	BankBackendMemory   = "memory"
	BankBackendPostgres = "postgres"
	BankBackendHTTP     = "http"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// BankBackend selects the account core: memory, postgres, or http.
	BankBackend string

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// Upstream bank middleware (BankBackend=http).
	BankAPIBase    string
	BankAPISecret  string
	BankAPITimeout time.Duration

	OpenAIKey   string
	OpenAIModel string

	// PromptDir holds per-domain system prompt JSON files.
	PromptDir string
	// Domains restricts which tool domains the assistant exposes.
	// Empty means all registered domains.
	Domains []string

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool

	// WebSocket chat channel knobs, handed to realtime.Options.
	WSDevInsecure       bool
	WSOriginAllowAll    bool
	WSAllowedOrigins    []string
	WSWriteTimeout      time.Duration
	WSReadIdleTimeout   time.Duration
	WSHeartbeatInterval time.Duration
	WSHeartbeatTimeout  time.Duration
	WSRateEvents        int
	WSRateWindow        time.Duration
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("BANKASSIST_HTTP_ADDR", "0.0.0.0:8000"),
		LogLevel:  EnvString("BANKASSIST_LOG_LEVEL", "info"),
		LogFormat: EnvString("BANKASSIST_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("BANKASSIST_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("BANKASSIST_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("BANKASSIST_HTTP_WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       EnvDuration("BANKASSIST_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("BANKASSIST_HTTP_MAX_HEADER_BYTES", 1<<20),

		BankBackend: EnvString("BANKASSIST_BANK_BACKEND", BankBackendMemory),

		DatabaseURL: EnvString("BANKASSIST_DATABASE_URL", ""),
		DBSchema:    EnvString("BANKASSIST_DB_SCHEMA", "bank"),
		DBMaxConns:  EnvInt32("BANKASSIST_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("BANKASSIST_DB_MIN_CONNS", 0),

		BankAPIBase:    EnvString("BANKASSIST_BANK_API_BASE", ""),
		BankAPISecret:  EnvString("BANKASSIST_BANK_API_SECRET", ""),
		BankAPITimeout: EnvDuration("BANKASSIST_BANK_API_TIMEOUT", 10*time.Second),

		OpenAIKey:   EnvString("OPENAI_API_KEY", ""),
		OpenAIModel: EnvString("BANKASSIST_OPENAI_MODEL", "gpt-4o"),

		PromptDir: EnvString("BANKASSIST_PROMPT_DIR", "config/prompts"),
		Domains:   EnvCSV("BANKASSIST_DOMAINS", ""),

		ReadinessRequireDB: EnvBool("BANKASSIST_READINESS_REQUIRE_DB", false),

		WSDevInsecure:       EnvBool("BANKASSIST_WS_DEV_INSECURE", false),
		WSOriginAllowAll:    EnvBool("BANKASSIST_WS_ORIGIN_ALLOW_ALL", false),
		WSAllowedOrigins:    EnvCSV("BANKASSIST_WS_ALLOWED_ORIGINS", "http://localhost,http://127.0.0.1"),
		WSWriteTimeout:      EnvDuration("BANKASSIST_WS_WRITE_TIMEOUT", 5*time.Second),
		WSReadIdleTimeout:   EnvDuration("BANKASSIST_WS_READ_IDLE_TIMEOUT", 5*time.Minute),
		WSHeartbeatInterval: EnvDuration("BANKASSIST_WS_HEARTBEAT_INTERVAL", 25*time.Second),
		WSHeartbeatTimeout:  EnvDuration("BANKASSIST_WS_HEARTBEAT_TIMEOUT", 5*time.Second),
		WSRateEvents:        EnvInt("BANKASSIST_WS_RATE_EVENTS", 30),
		WSRateWindow:        EnvDuration("BANKASSIST_WS_RATE_WINDOW", 10*time.Second),
	}
}
