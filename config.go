package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/mxxx222/converto-receipts/pkg/store"
	"github.com/mxxx222/converto-receipts/pkg/vat"
)

// appConfig is read once at startup from the environment (optionally
// seeded from ./.env, see loadDotEnv).
type appConfig struct {
	Addr           string
	OCRProvider    string // vision | azure | tesseract (default)
	OCRLanguages   []string
	VisionAPIKey   string
	AzureEndpoint  string
	AzureKey       string
	DSN            string // postgres; takes precedence over BoltPath
	BoltPath       string
	MaxUploadBytes int64
	WatchDir       string
	AuthSecret     string
	ValidVATRates  []float64
}

func loadConfig() appConfig {
	return appConfig{
		Addr:           getEnv("ADDR", ":8081"),
		OCRProvider:    getEnv("OCR_PROVIDER", ""),
		OCRLanguages:   splitList(getEnv("OCR_LANGUAGES", "")),
		VisionAPIKey:   getEnv("VISION_API_KEY", ""),
		AzureEndpoint:  getEnv("AZURE_VISION_ENDPOINT", ""),
		AzureKey:       getEnv("AZURE_VISION_KEY", ""),
		DSN:            getEnv("DB_DSN", ""),
		BoltPath:       getEnv("BOLT_PATH", ""),
		MaxUploadBytes: getEnvInt64("UPLOAD_MAX_BYTES", store.DefaultMaxUploadBytes),
		WatchDir:       getEnv("WATCH_DIR", ""),
		AuthSecret:     getEnv("AUTH_SECRET", ""),
		ValidVATRates:  parseRates(getEnv("VAT_VALID_RATES", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseRates reads a comma-separated percent list ("0,7,19,24"); invalid or
// empty input keeps the default statutory set.
func parseRates(s string) []float64 {
	var out []float64
	for _, part := range splitList(s) {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 {
			return vat.DefaultValidRates
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return vat.DefaultValidRates
	}
	return out
}
