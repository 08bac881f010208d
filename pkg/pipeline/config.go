package pipeline

import (
	"os"
	"strconv"
)

// Config carries the pipeline tunables. Defaults match a scanned-document
// workload: 150 dpi base renders, 300 dpi escalation renders, and a 0.7
// confidence floor below which a page earns one higher-resolution retry.
type Config struct {
	DefaultDPI          int
	HighDPI             int
	ConfidenceThreshold float64
	MediaDir            string
}

// ConfigFromEnv reads the pipeline configuration from the environment.
func ConfigFromEnv() Config {
	return Config{
		DefaultDPI:          envInt("DEFAULT_DPI", 150),
		HighDPI:             envInt("HIGH_DPI", 300),
		ConfidenceThreshold: envFloat("LOW_CONFIDENCE_THRESHOLD", 0.7),
		MediaDir:            envStr("MEDIA_BASE", "media"),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}
