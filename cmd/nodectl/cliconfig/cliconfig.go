// Package cliconfig loads the YAML file nodectl runs against into a
// node.NodeConfig, with a .env overlay for local development secrets
// that shouldn't live in the checked-in YAML.
package cliconfig

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jihun-kang/orbisync-node/pkg/node"
)

// File is the on-disk shape of a nodectl config file.
type File struct {
	HubBaseURL      string   `yaml:"hub_base_url"`
	SlotID          string   `yaml:"slot_id"`
	FirmwareVersion string   `yaml:"firmware_version"`
	Capabilities    []string `yaml:"capabilities"`

	HeartbeatMs       int64 `yaml:"heartbeat_interval_ms"`
	CommandPollMs     int64 `yaml:"command_poll_interval_ms"`
	RegisterRetryMs   int64 `yaml:"register_retry_ms"`
	TunnelReconnectMs int64 `yaml:"tunnel_reconnect_ms"`

	AllowInsecureTLS bool   `yaml:"allow_insecure_tls"`
	RootCAPath       string `yaml:"root_ca_path"`

	EnableTunnel           bool `yaml:"enable_tunnel"`
	EnableNodeRegistration bool `yaml:"enable_node_registration"`
	EnableSelfApprove      bool `yaml:"enable_self_approve"`
	PreferRegisterBySlot   bool `yaml:"prefer_register_by_slot"`
	EnableCommandPolling   bool `yaml:"enable_command_polling"`

	LoginTokenEnv string `yaml:"login_token_env"`
	MAC           string `yaml:"mac"`
	ChipID        string `yaml:"chip_id"`
	Platform      string `yaml:"platform"`
}

// Load reads path as YAML, applies a .env overlay (if envFile is non-empty
// and exists) for secret fields named *_env, and returns a ready NodeConfig
// plus the HardwareIdentity this process should present.
func Load(path, envFile string) (node.NodeConfig, node.HardwareIdentity, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return node.NodeConfig{}, node.HardwareIdentity{}, fmt.Errorf("load env file: %w", err)
			}
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return node.NodeConfig{}, node.HardwareIdentity{}, fmt.Errorf("read config: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return node.NodeConfig{}, node.HardwareIdentity{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := node.DefaultNodeConfig()
	cfg.HubBaseURL = f.HubBaseURL
	cfg.SlotID = f.SlotID
	if f.FirmwareVersion != "" {
		cfg.FirmwareVersion = f.FirmwareVersion
	}
	cfg.Capabilities = f.Capabilities
	cfg.TLS.AllowInsecure = f.AllowInsecureTLS
	if f.RootCAPath != "" {
		pem, err := os.ReadFile(f.RootCAPath)
		if err != nil {
			return node.NodeConfig{}, node.HardwareIdentity{}, fmt.Errorf("read root ca: %w", err)
		}
		cfg.TLS.RootCAPEM = pem
	}
	cfg.Features = node.FeatureToggles{
		EnableTunnel:           f.EnableTunnel,
		EnableNodeRegistration: f.EnableNodeRegistration,
		EnableSelfApprove:      f.EnableSelfApprove,
		PreferRegisterBySlot:   f.PreferRegisterBySlot,
		EnableCommandPolling:   f.EnableCommandPolling,
	}
	applyIntervalOverrides(&cfg, f)
	if f.LoginTokenEnv != "" {
		cfg.Credentials.LoginToken = os.Getenv(f.LoginTokenEnv)
	}

	hw := node.HardwareIdentity{MAC: f.MAC, ChipID: f.ChipID, Platform: f.Platform}
	return cfg, hw, nil
}

func applyIntervalOverrides(cfg *node.NodeConfig, f File) {
	if f.HeartbeatMs > 0 {
		cfg.Intervals.Heartbeat = time.Duration(f.HeartbeatMs) * time.Millisecond
	}
	if f.CommandPollMs > 0 {
		cfg.Intervals.CommandPoll = time.Duration(f.CommandPollMs) * time.Millisecond
	}
	if f.RegisterRetryMs > 0 {
		cfg.Intervals.RegisterRetry = time.Duration(f.RegisterRetryMs) * time.Millisecond
	}
	if f.TunnelReconnectMs > 0 {
		cfg.Intervals.TunnelReconnect = time.Duration(f.TunnelReconnectMs) * time.Millisecond
	}
}
