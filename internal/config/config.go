// Package config resolves the gateway's declarative configuration (spec
// §6.2, §6.3, §4.14) into a typed, immutable snapshot.
//
// Grounded on kubilitics-ai's internal/config (ConfigManager interface,
// Load/Get/Validate/Watch/Reload) and kubilitics-backend's internal/config
// (viper.SetDefault table + env var binding), merged into one loader since
// this gateway is a single process rather than the teacher's two.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kubilitics/mcp-gateway/internal/model"
)

// RouterPolicy is the §6.2 `router` config section.
type RouterPolicy struct {
	AdvisorWeight        float64
	MinConfidence        float64
	AdvisorTimeoutMs     int
	TopN                 int
	TopNAdv              int
	WakeBudgetMultiplier float64
}

// ServiceConfig is the declarative, pre-registry form of a Service (spec §6.2).
type ServiceConfig struct {
	Name         string
	Image        string
	Endpoint     model.Endpoint
	Priority     model.Priority
	Enabled      bool
	AutoStart    bool
	IdleTimeout  time.Duration
	WakeBudgetMs int
	Resources    model.Resources
	HealthProbe  model.HealthProbe
}

// VirtualServerConfig is the declarative form of a VirtualServer.
type VirtualServerConfig struct {
	Name    string
	Enabled bool
	Members []string
}

// Snapshot is the fully resolved, immutable configuration (spec §4.14:
// "the loader's output is an immutable snapshot").
type Snapshot struct {
	Services       []ServiceConfig
	VirtualServers []VirtualServerConfig
	Router         RouterPolicy
	Flags          map[string]bool // recognized flag key -> default value

	AdvisorEndpoint string
	AdvisorModel    string
	WakeHeadroomPct float64

	HTTPPort       int
	LogLevel       string
	LogFormat      string
	LogFilePath    string
	DatabasePath   string
	TracingEndpoint string
}

// Load resolves configuration from (in priority order) environment
// variables, a YAML file, and built-in defaults (spec §6.2/§6.3).
// Validation failures are collected and returned together (§4.14: "reported
// as a list, not first-only").
func Load(configPath string) (*Snapshot, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("/etc/mcp-gateway/")
		v.AddConfigPath("$HOME/.mcp-gateway")
		v.AddConfigPath(".")
	}

	setDefaults(v)
	v.SetEnvPrefix("MCP_GATEWAY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	snap := &Snapshot{
		Router: RouterPolicy{
			AdvisorWeight:        v.GetFloat64("router.advisor_weight"),
			MinConfidence:        v.GetFloat64("router.min_confidence"),
			AdvisorTimeoutMs:     v.GetInt("router.advisor_timeout_ms"),
			TopN:                 v.GetInt("router.top_n"),
			TopNAdv:              v.GetInt("router.top_n_adv"),
			WakeBudgetMultiplier: v.GetFloat64("router.wake_budget_multiplier"),
		},
		Flags:           defaultFlags(),
		AdvisorEndpoint: envOr(v, "ADVISOR_ENDPOINT", "advisor.endpoint"),
		AdvisorModel:    envOr(v, "ADVISOR_MODEL", "advisor.model"),
		WakeHeadroomPct: v.GetFloat64("wake_headroom_pct"),
		HTTPPort:        v.GetInt("http_port"),
		LogLevel:        v.GetString("log_level"),
		LogFormat:       v.GetString("log_format"),
		LogFilePath:     v.GetString("log_file_path"),
		DatabasePath:    v.GetString("database_path"),
		TracingEndpoint: v.GetString("tracing_endpoint"),
	}

	applyEnvScalarOverrides(v, snap)

	if err := parseServices(v, snap); err != nil {
		return nil, err
	}
	if err := parseVirtualServers(v, snap); err != nil {
		return nil, err
	}
	applyFlagEnvOverrides(snap)

	if errs := Validate(snap); len(errs) > 0 {
		return nil, fmt.Errorf("config: %d validation error(s): %s", len(errs), strings.Join(errs, "; "))
	}
	return snap, nil
}

func envOr(v *viper.Viper, envKey, viperKey string) string {
	if val, ok := lookupEnv(envKey); ok && val != "" {
		return val
	}
	if val := v.GetString(strings.ToLower(envKey)); val != "" {
		return val
	}
	return v.GetString(viperKey)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", 8787)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("database_path", "./mcp-gateway.db")
	v.SetDefault("wake_headroom_pct", 0.85)
	v.SetDefault("advisor.endpoint", "http://localhost:11434")
	v.SetDefault("advisor.model", "llama3")
	v.SetDefault("router.advisor_weight", 0.7)
	v.SetDefault("router.min_confidence", 0.3)
	v.SetDefault("router.advisor_timeout_ms", 5000)
	v.SetDefault("router.top_n", 3)
	v.SetDefault("router.top_n_adv", 20)
	v.SetDefault("router.wake_budget_multiplier", 3.0)
}

// recognizedFlags is the closed set of flag keys and their defaults;
// Snapshot.Flags holds exactly these keys, changed only by FLAG_* env
// overrides. A `flags` section in the config file is not read, so its
// values have no effect and unknown keys in it are not rejected.
var recognizedFlags = map[string]bool{
	"core.supervisor":   true,
	"core.router":       true,
	"api.metrics":       true,
	"api.lifecycle":     true,
	"tool.advisor":      true,
	"tool.argBuilder":   true,
	"ui.adminReadOnly":  false,
}

func defaultFlags() map[string]bool {
	out := make(map[string]bool, len(recognizedFlags))
	for k, v := range recognizedFlags {
		out[k] = v
	}
	return out
}

// applyFlagEnvOverrides implements FLAG_<CATEGORY>_<NAME> env overrides
// (spec §6.3), truthy = 1|true|yes.
func applyFlagEnvOverrides(snap *Snapshot) {
	for key := range snap.Flags {
		parts := strings.SplitN(key, ".", 2)
		if len(parts) != 2 {
			continue
		}
		envKey := "FLAG_" + strings.ToUpper(parts[0]) + "_" + strings.ToUpper(parts[1])
		if val, ok := lookupEnv(envKey); ok {
			snap.Flags[key] = truthy(val)
		}
	}
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func applyEnvScalarOverrides(v *viper.Viper, snap *Snapshot) {
	if val, ok := lookupEnv("ADVISOR_TIMEOUT_MS"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			snap.Router.AdvisorTimeoutMs = n
		}
	}
	if val, ok := lookupEnv("ADVISOR_WEIGHT"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			snap.Router.AdvisorWeight = f
		}
	}
	if val, ok := lookupEnv("ADVISOR_MIN_CONFIDENCE"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			snap.Router.MinConfidence = f
		}
	}
	if val, ok := lookupEnv("WAKE_HEADROOM_PCT"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			snap.WakeHeadroomPct = f
		}
	}
}
