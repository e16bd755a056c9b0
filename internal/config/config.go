package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr string

	DBDriver string
	DBDSN    string

	AuthSecret string

	// auto admits applications right after submit; manual waits for a
	// registrar. Practice flows normally run auto.
	AdmissionPolicy string

	CORSOrigins []string

	// Fallbacks used when the settings table has no row for a tunable.
	DefaultTotalQuestions  int
	DefaultDurationMinutes int
	DefaultPassMarkPercent float64
	SettingsTTLSeconds     int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:               addr,
		DBDriver:               envOr("DB_DRIVER", "sqlite"),
		DBDSN:                  envOr("DB_DSN", ""),
		AuthSecret:             envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		AdmissionPolicy:        envOr("ADMISSION_POLICY", "auto"),
		CORSOrigins:            csvOr("CORS_ORIGINS", "http://localhost:3000"),
		DefaultTotalQuestions:  envInt("EXAM_TOTAL_QUESTIONS", 50),
		DefaultDurationMinutes: envInt("EXAM_DURATION_MINUTES", 60),
		DefaultPassMarkPercent: envFloat("EXAM_PASS_MARK_PERCENT", 50),
		SettingsTTLSeconds:     envInt("SETTINGS_TTL_SECONDS", 60),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
