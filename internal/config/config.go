// Package config loads the process configuration: a ".env" file (if
// present) followed by the process environment, with typed defaults for
// every variable.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"microstructmon/internal/model"
)

// Config is the fully resolved, typed configuration for one process run.
type Config struct {
	Symbols                []model.Symbol
	Depth                  int
	BaseMMNotional         float64
	LargeMoveNotional      float64 // surfaced in /api/config only
	LargeMoveWindowBps     float64
	LargeMoveNotionalFloor float64
	SizeBins               []float64
	DistanceBinsBps        []float64
	LogIntervalMs          int
	MetricsIntervalMs      int
	DataDir                string
	BasePath               string
	LiveMonitoring         bool
	Host                   string
	Port                   string
}

// Load reads ".env" (if present — a missing file is not an error) then the
// process environment, applying the documented defaults. godotenv.Load
// never overrides a variable that is already set in the process
// environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}

	cfg := Config{
		Symbols:                parseSymbols(getEnv("SYMBOLS", "WHITEWHALEUSDT")),
		Depth:                  getEnvInt("DEPTH", 50),
		BaseMMNotional:         getEnvFloat("BASE_MM_NOTIONAL", 30000),
		LargeMoveNotional:      getEnvFloat("LARGE_MOVE_NOTIONAL", 30000),
		LargeMoveWindowBps:     getEnvFloat("LARGE_MOVE_WINDOW_BPS", 200),
		LargeMoveNotionalFloor: getEnvFloat("LARGE_MOVE_NOTIONAL_FLOOR", 2000),
		SizeBins:               parseFloatList(getEnv("SIZE_BINS", "500,1000,2500,5000,10000,25000,50000")),
		DistanceBinsBps:        parseFloatList(getEnv("DISTANCE_BINS_BPS", "5,10,25,50,100,200")),
		LogIntervalMs:          getEnvInt("LOG_INTERVAL_MS", 5000),
		MetricsIntervalMs:      getEnvInt("METRICS_INTERVAL_MS", 1000),
		DataDir:                getEnv("DATA_DIR", "data"),
		BasePath:               getEnv("BASE_PATH", ""),
		LiveMonitoring:         getEnvBool("LIVE_MONITORING", true),
		Host:                   getEnv("HOST", "127.0.0.1"),
		Port:                   getEnv("PORT", "3000"),
	}
	return cfg, nil
}

func parseSymbols(raw string) []model.Symbol {
	parts := strings.Split(raw, ",")
	out := make([]model.Symbol, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, model.Normalize(p))
	}
	return out
}

func parseFloatList(raw string) []float64 {
	parts := strings.Split(raw, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
