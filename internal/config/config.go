package config

import (
	"flag"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Version is reported by /api/health and /api/config.
const Version = "2.0.0"

// Config is loaded once at startup and never mutated afterwards.
type Config struct {
	ListenAddr string
	StaticDir  string
	Debug      bool

	// Hosted provider.
	AnthropicAPIKey  string
	AnthropicBaseURL string
	ProxyURL         string
	DefaultModel     string
	MaxTokens        int

	// Local daemon.
	OllamaHost string
	LocalModel string

	CORSOrigins []string
	LogLevel    string
	LogFile     string

	ChatTimeout   time.Duration
	StreamTimeout time.Duration
	LocalTimeout  time.Duration
	AuxTimeout    time.Duration

	// A2A
	A2AEnabled bool
	A2APort    int
	AgentName  string
	AgentDesc  string
}

// Load reads .env (if present), then flags whose defaults come from the
// environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env", "error", err)
	}

	cfg := &Config{}
	var corsOrigins string

	listen := net.JoinHostPort(getEnv("HOST", "0.0.0.0"), getEnv("PORT", "5000"))
	flag.StringVar(&cfg.ListenAddr, "listen-addr", getEnv("LISTEN_ADDR", listen), "Gateway listen address")
	flag.StringVar(&cfg.StaticDir, "static-dir", getEnv("STATIC_DIR", ""), "Directory with the web client (index.html); empty disables static files")
	flag.BoolVar(&cfg.Debug, "debug", getEnvBool("DEBUG", false), "Debug mode (verbose logging)")

	flag.StringVar(&cfg.AnthropicAPIKey, "anthropic-api-key", getEnv("ANTHROPIC_API_KEY", ""), "Default Anthropic API key used when the caller sends none")
	flag.StringVar(&cfg.AnthropicBaseURL, "anthropic-base-url", getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"), "Anthropic API base URL")
	flag.StringVar(&cfg.ProxyURL, "proxy-url", getEnv("ANTHROPIC_PROXY_URL", ""), "Outbound HTTP proxy for the hosted provider; empty uses HTTPS_PROXY")
	flag.StringVar(&cfg.DefaultModel, "default-model", getEnv("DEFAULT_MODEL", "claude-sonnet-4-20250514"), "Model used when the request names none")
	flag.IntVar(&cfg.MaxTokens, "max-tokens", getEnvInt("MAX_TOKENS", 8192), "max_tokens used when the request sets none")

	flag.StringVar(&cfg.OllamaHost, "ollama-host", getEnv("OLLAMA_HOST", "http://localhost:11434"), "Ollama daemon base URL")
	flag.StringVar(&cfg.LocalModel, "local-model", getEnv("OLLAMA_MODEL", "llama3.2"), "Model used for local requests that name none")

	flag.StringVar(&corsOrigins, "cors-origins", getEnv("CORS_ORIGINS", "*"), "Comma-separated allowed CORS origins")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "INFO"), "Log level (DEBUG, INFO, WARN, ERROR)")
	flag.StringVar(&cfg.LogFile, "log-file", getEnv("LOG_FILE", "logs/agent_studio.log"), "Log file path; empty logs to stdout only")

	flag.DurationVar(&cfg.ChatTimeout, "chat-timeout", getEnvDuration("CHAT_TIMEOUT", 120*time.Second), "Blocking chat timeout")
	flag.DurationVar(&cfg.StreamTimeout, "stream-timeout", getEnvDuration("STREAM_TIMEOUT", 300*time.Second), "Overall streaming timeout")
	flag.DurationVar(&cfg.LocalTimeout, "local-timeout", getEnvDuration("LOCAL_TIMEOUT", 300*time.Second), "Local daemon timeout")
	flag.DurationVar(&cfg.AuxTimeout, "aux-timeout", getEnvDuration("AUX_TIMEOUT", 60*time.Second), "Enhance and review timeout")

	flag.BoolVar(&cfg.A2AEnabled, "a2a", getEnvBool("A2A_ENABLED", false), "Enable A2A server alongside the gateway")
	flag.IntVar(&cfg.A2APort, "a2a-port", getEnvInt("A2A_PORT", 8000), "A2A server listen port")
	flag.StringVar(&cfg.AgentName, "agent-name", getEnv("AGENT_NAME", "agent-studio"), "A2A AgentCard name")
	flag.StringVar(&cfg.AgentDesc, "agent-desc", getEnv("AGENT_DESC", "Agent Studio chat gateway exposed via A2A protocol"), "A2A AgentCard description")

	flag.Parse()
	cfg.CORSOrigins = splitList(corsOrigins)
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.ToLower(os.Getenv(key))
	switch v {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
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
