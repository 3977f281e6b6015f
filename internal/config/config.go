package config

import (
	"os"
	"strconv"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port int

	// Gain store connection
	StoreURL    string
	StoreAPIKey string

	// OAuth token verifier (optional -- empty disables provider sign-in)
	VerifierURL string

	// Audio graph
	ClipPath      string // recorded clip location; existing file selects playback mode
	CaptureFormat string // ffmpeg input format: alsa, pulse, avfoundation, ...
	CaptureDevice string
	Layout        string // "stereo" or "mono", resolved once at start

	// Noise meter
	MeterWindowSec int // rolling statistics window, seconds

	// Logging
	LogLevel string // zap level: debug, info, warn, error
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port: envInt("EQD_PORT", 8080),

		StoreURL:    envStr("EQD_STORE_URL", "http://gainstore:9000"),
		StoreAPIKey: envStr("EQD_STORE_API_KEY", ""),

		VerifierURL: envStr("EQD_VERIFIER_URL", ""),

		ClipPath:      envStr("EQD_CLIP_PATH", "/var/lib/equalizerd/clip.pcm"),
		CaptureFormat: envStr("EQD_CAPTURE_FORMAT", "alsa"),
		CaptureDevice: envStr("EQD_CAPTURE_DEVICE", "default"),
		Layout:        envStr("EQD_LAYOUT", "stereo"),

		MeterWindowSec: envInt("EQD_METER_WINDOW", 2),

		LogLevel: envStr("EQD_LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
