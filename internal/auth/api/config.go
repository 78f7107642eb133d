package api

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Config controls API transport behavior and cookie defaults.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// Cookie transport for browser clients. Both credentials travel as
	// HttpOnly cookies; native clients use the JSON body and the
	// Authorization header instead.
	AccessCookieName  string
	RefreshCookieName string
	CookiePath        string
	CookieDomain      string
	CookieSecure      bool
	CookieSameSite    http.SameSite

	// HistoryLimit caps watch-history responses.
	HistoryLimit int
}

// DefaultConfig returns the API defaults.
func DefaultConfig() Config {
	return Config{
		TrustProxy:        false,
		MaxBodyBytes:      1 << 20, // 1 MiB
		AccessCookieName:  "accessToken",
		RefreshCookieName: "refreshToken",
		CookiePath:        "/",
		CookieSecure:      true,
		CookieSameSite:    http.SameSiteLaxMode,
		HistoryLimit:      50,
	}
}

// LoadConfigFromEnv loads API config from environment variables with safe
// defaults.
//
// Env surface:
//   - VIDTUBE_API_TRUST_PROXY
//   - VIDTUBE_API_MAX_BODY_BYTES
//   - VIDTUBE_API_COOKIE_DOMAIN
//   - VIDTUBE_API_COOKIE_SECURE
//   - VIDTUBE_API_HISTORY_LIMIT
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.TrustProxy = envBool("VIDTUBE_API_TRUST_PROXY", cfg.TrustProxy)
	cfg.MaxBodyBytes = envInt64("VIDTUBE_API_MAX_BODY_BYTES", cfg.MaxBodyBytes)
	cfg.CookieDomain = strings.TrimSpace(os.Getenv("VIDTUBE_API_COOKIE_DOMAIN"))
	cfg.CookieSecure = envBool("VIDTUBE_API_COOKIE_SECURE", cfg.CookieSecure)
	cfg.HistoryLimit = envInt("VIDTUBE_API_HISTORY_LIMIT", cfg.HistoryLimit)
	return cfg
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
