// Package config loads the bridge's environment-driven configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the environment variables that configure the bridge.
type Config struct {
	ModHostHost         string
	ModHostPort         int
	ModHostFeedbackPort int
	RepAddr             string
	PubAddr             string
	HealthAddr          string
	BundlePaths         []string
}

// Load reads Config from the environment, applying the defaults documented
// in the wire protocol section of the spec.
func Load() (Config, error) {
	cfg := Config{
		ModHostHost: getEnv("MOD_HOST_HOST", "127.0.0.1"),
		RepAddr:     getEnv("MODHOST_BRIDGE_REP", "tcp://127.0.0.1:6000"),
		PubAddr:     getEnv("MODHOST_BRIDGE_PUB", "tcp://127.0.0.1:6001"),
		HealthAddr:  getEnv("MODHOST_BRIDGE_HEALTH", "tcp://127.0.0.1:6002"),
	}

	port, err := getEnvInt("MOD_HOST_PORT", 5555)
	if err != nil {
		return Config{}, err
	}
	cfg.ModHostPort = port

	feedbackPort, err := getEnvInt("MOD_HOST_FEEDBACK_PORT", 5556)
	if err != nil {
		return Config{}, err
	}
	cfg.ModHostFeedbackPort = feedbackPort
	cfg.BundlePaths = getEnvPathList("MODHOST_BRIDGE_LV2_PATH", defaultBundlePaths())

	return cfg, nil
}

// defaultBundlePaths returns the three LV2 search paths named in §4.6:
// the two system directories plus the user's own ~/.lv2.
func defaultBundlePaths() []string {
	paths := []string{"/usr/lib/lv2", "/usr/local/lib/lv2"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home+"/.lv2")
	}
	return paths
}

func getEnvPathList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	return strings.Split(v, ":")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q", key, v)
	}
	return n, nil
}
