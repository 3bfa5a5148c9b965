package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/kubilitics/mcp-gateway/internal/model"
)

// rawService mirrors the YAML shape of one `services[]` entry (spec §6.2).
// Kept distinct from ServiceConfig so viper's mapstructure decoding doesn't
// need to know about model.Endpoint/model.Resources field names directly.
type rawService struct {
	Name      string `mapstructure:"name"`
	Image     string `mapstructure:"image"`
	Endpoint  struct {
		Scheme     string `mapstructure:"scheme"`
		Host       string `mapstructure:"host"`
		Port       int    `mapstructure:"port"`
		PathSuffix string `mapstructure:"pathSuffix"`
	} `mapstructure:"endpoint"`
	Priority       string `mapstructure:"priority"`
	Enabled        *bool  `mapstructure:"enabled"`
	AutoStart      bool   `mapstructure:"autoStart"`
	IdleTimeoutSec int    `mapstructure:"idleTimeoutSeconds"`
	WakeBudgetMs   int    `mapstructure:"wakeBudgetMs"`
	Resources      struct {
		MemLimitBytes        int64 `mapstructure:"memLimitBytes"`
		MemReservationBytes  int64 `mapstructure:"memReservationBytes"`
		CPULimitMillis       int64 `mapstructure:"cpuLimitMillis"`
		CPUReservationMillis int64 `mapstructure:"cpuReservationMillis"`
		PIDLimit             int64 `mapstructure:"pidLimit"`
	} `mapstructure:"resources"`
	HealthProbe struct {
		Kind         string `mapstructure:"kind"`
		Target       string `mapstructure:"target"`
		IntervalMs   int    `mapstructure:"intervalMs"`
		TimeoutMs    int    `mapstructure:"timeoutMs"`
		Retries      int    `mapstructure:"retries"`
		StartGraceMs int    `mapstructure:"startGraceMs"`
	} `mapstructure:"healthProbe"`
}

type rawVirtualServer struct {
	Name    string   `mapstructure:"name"`
	Enabled *bool    `mapstructure:"enabled"`
	Members []string `mapstructure:"members"`
}

func parseServices(v *viper.Viper, snap *Snapshot) error {
	var raws []rawService
	if err := v.UnmarshalKey("services", &raws); err != nil {
		return fmt.Errorf("config: services: %w", err)
	}
	for _, r := range raws {
		enabled := true
		if r.Enabled != nil {
			enabled = *r.Enabled
		}
		snap.Services = append(snap.Services, ServiceConfig{
			Name:  r.Name,
			Image: r.Image,
			Endpoint: model.Endpoint{
				Scheme:     r.Endpoint.Scheme,
				Host:       r.Endpoint.Host,
				Port:       r.Endpoint.Port,
				PathSuffix: r.Endpoint.PathSuffix,
			},
			Priority:     priorityOrDefault(r.Priority),
			Enabled:      enabled,
			AutoStart:    r.AutoStart,
			IdleTimeout:  time.Duration(r.IdleTimeoutSec) * time.Second,
			WakeBudgetMs: r.WakeBudgetMs,
			Resources: model.Resources{
				MemLimitBytes:        r.Resources.MemLimitBytes,
				MemReservationBytes:  r.Resources.MemReservationBytes,
				CPULimitMillis:       r.Resources.CPULimitMillis,
				CPUReservationMillis: r.Resources.CPUReservationMillis,
				PIDLimit:             r.Resources.PIDLimit,
			},
			HealthProbe: model.HealthProbe{
				Kind:         model.HealthProbeKind(defaultStr(r.HealthProbe.Kind, "http")),
				Target:       r.HealthProbe.Target,
				IntervalMs:   r.HealthProbe.IntervalMs,
				TimeoutMs:    r.HealthProbe.TimeoutMs,
				Retries:      r.HealthProbe.Retries,
				StartGraceMs: r.HealthProbe.StartGraceMs,
			},
		})
	}
	return nil
}

func parseVirtualServers(v *viper.Viper, snap *Snapshot) error {
	var raws []rawVirtualServer
	if err := v.UnmarshalKey("virtualServers", &raws); err != nil {
		return fmt.Errorf("config: virtualServers: %w", err)
	}
	for _, r := range raws {
		enabled := true
		if r.Enabled != nil {
			enabled = *r.Enabled
		}
		snap.VirtualServers = append(snap.VirtualServers, VirtualServerConfig{
			Name:    r.Name,
			Enabled: enabled,
			Members: r.Members,
		})
	}
	return nil
}

func priorityOrDefault(s string) model.Priority {
	switch model.Priority(s) {
	case model.PriorityHigh, model.PriorityLow:
		return model.Priority(s)
	default:
		return model.PriorityNormal
	}
}

func defaultStr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
