package config

import "time"

type Config struct {
	Logging    Logging    `json:"logging,omitempty" yaml:"logging,omitempty"`
	Dataplane  Dataplane  `json:"dataplane,omitempty" yaml:"dataplane,omitempty"`
	Journal    Journal    `json:"journal,omitempty" yaml:"journal,omitempty"`
	Monitoring Monitoring `json:"monitoring,omitempty" yaml:"monitoring,omitempty"`
	Bindings   Bindings   `json:"bindings,omitempty" yaml:"bindings,omitempty"`
}

type Logging struct {
	Format     string            `json:"format,omitempty" yaml:"format,omitempty"`
	Level      string            `json:"level,omitempty" yaml:"level,omitempty"`
	Components map[string]string `json:"components,omitempty" yaml:"components,omitempty"`
}

type Dataplane struct {
	VPPAPISocket    string        `json:"vpp_api_socket,omitempty" yaml:"vpp_api_socket,omitempty"`
	ConnectAttempts int           `json:"connect_attempts,omitempty" yaml:"connect_attempts,omitempty"`
	ConnectInterval time.Duration `json:"connect_interval,omitempty" yaml:"connect_interval,omitempty"`
	EventBufferSize int           `json:"event_buffer_size,omitempty" yaml:"event_buffer_size,omitempty"`
}

// Journal records bound bindings in sqlite. Disabled when Path is empty.
type Journal struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

type Monitoring struct {
	Enabled       bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	ListenAddress string `json:"listen_address,omitempty" yaml:"listen_address,omitempty"`
}

// Bindings is the desired state. Interfaces and lists are referenced by name.
type Bindings struct {
	ACL      []ACLBinding    `json:"acl,omitempty" yaml:"acl,omitempty"`
	MACIP    []MACIPBinding  `json:"macip,omitempty" yaml:"macip,omitempty"`
	Prefixes []PrefixBinding `json:"prefixes,omitempty" yaml:"prefixes,omitempty"`
}

type ACLBinding struct {
	Interface string `json:"interface" yaml:"interface"`
	Direction string `json:"direction" yaml:"direction"`
	ACL       string `json:"acl" yaml:"acl"`
}

type MACIPBinding struct {
	Interface string `json:"interface" yaml:"interface"`
	ACL       string `json:"acl" yaml:"acl"`
}

type PrefixBinding struct {
	Interface string `json:"interface" yaml:"interface"`
	Prefix    string `json:"prefix" yaml:"prefix"`
}
