package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"inet.af/netaddr"

	"github.com/veesix-networks/vppom/pkg/acl"
)

const (
	DefaultVPPAPISocket    = "/run/vpp/api.sock"
	DefaultConnectAttempts = 10
	DefaultConnectInterval = time.Second
	DefaultEventBufferSize = 1024
	DefaultListenAddress   = ":9090"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Dataplane.VPPAPISocket == "" {
		c.Dataplane.VPPAPISocket = DefaultVPPAPISocket
	}
	if c.Dataplane.ConnectAttempts == 0 {
		c.Dataplane.ConnectAttempts = DefaultConnectAttempts
	}
	if c.Dataplane.ConnectInterval == 0 {
		c.Dataplane.ConnectInterval = DefaultConnectInterval
	}
	if c.Dataplane.EventBufferSize == 0 {
		c.Dataplane.EventBufferSize = DefaultEventBufferSize
	}
	if c.Monitoring.Enabled && c.Monitoring.ListenAddress == "" {
		c.Monitoring.ListenAddress = DefaultListenAddress
	}
}

func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format '%s'", c.Logging.Format)
	}

	seen := make(map[acl.Key]int)
	for i, b := range c.Bindings.ACL {
		if b.Interface == "" || b.ACL == "" {
			return fmt.Errorf("bindings.acl[%d]: interface and acl are required", i)
		}
		dir, err := acl.ParseDirection(b.Direction)
		if err != nil {
			return fmt.Errorf("bindings.acl[%d].direction: %w", i, err)
		}
		key := acl.Key{Direction: dir, Itf: b.Interface}
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("bindings.acl[%d]: %s already bound by bindings.acl[%d]", i, key, prev)
		}
		seen[key] = i
	}

	macip := make(map[string]int)
	for i, b := range c.Bindings.MACIP {
		if b.Interface == "" || b.ACL == "" {
			return fmt.Errorf("bindings.macip[%d]: interface and acl are required", i)
		}
		if prev, ok := macip[b.Interface]; ok {
			return fmt.Errorf("bindings.macip[%d]: %s already bound by bindings.macip[%d]", i, b.Interface, prev)
		}
		macip[b.Interface] = i
	}

	for i, b := range c.Bindings.Prefixes {
		if b.Interface == "" {
			return fmt.Errorf("bindings.prefixes[%d]: interface is required", i)
		}
		if _, err := netaddr.ParseIPPrefix(b.Prefix); err != nil {
			return fmt.Errorf("bindings.prefixes[%d].prefix: %w", i, err)
		}
	}

	return nil
}
