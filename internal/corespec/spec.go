package corespec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Supported tunnel cores.
const (
	CoreBackhaul = "backhaul"
	CoreRathole  = "rathole"
	CoreChisel   = "chisel"
	CoreFrp      = "frp"
)

// Cores returns the closed set of supported core names.
func Cores() []string {
	return []string{CoreBackhaul, CoreRathole, CoreChisel, CoreFrp}
}

// Known reports whether name is a supported core.
func Known(name string) bool {
	switch name {
	case CoreBackhaul, CoreRathole, CoreChisel, CoreFrp:
		return true
	}
	return false
}

// MissingFieldError marks a spec that lacks a parameter required to start the
// server side. The reset orchestrator skips such tunnels instead of failing
// the batch.
type MissingFieldError struct {
	Core  string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s spec: missing required field %q", e.Core, e.Field)
}

// Spec is one core's typed parameter bag.
type Spec interface {
	Core() string
	// Validate checks the parameters required to start the local server.
	Validate() error
}

// Port accepts both JSON numbers and numeric strings, since tunnel specs
// created by older panel versions stored ports as strings.
type Port int

func (p *Port) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid port %q", s)
	}
	*p = Port(n)
	return nil
}

type RatholeSpec struct {
	RemoteAddr string `json:"remote_addr"`
	Token      string `json:"token"`
	RemotePort Port   `json:"remote_port"`
	ListenPort Port   `json:"listen_port"` // legacy alias for remote_port
	LocalAddr  string `json:"local_addr"`
	LocalPort  Port   `json:"local_port"`
}

func (s *RatholeSpec) Core() string { return CoreRathole }

// ProxyPort is the port remote clients connect to; remote_port with a legacy
// listen_port fallback.
func (s *RatholeSpec) ProxyPort() int {
	if s.RemotePort != 0 {
		return int(s.RemotePort)
	}
	return int(s.ListenPort)
}

func (s *RatholeSpec) Validate() error {
	if s.RemoteAddr == "" {
		return &MissingFieldError{Core: CoreRathole, Field: "remote_addr"}
	}
	if s.Token == "" {
		return &MissingFieldError{Core: CoreRathole, Field: "token"}
	}
	if s.ProxyPort() == 0 {
		return &MissingFieldError{Core: CoreRathole, Field: "remote_port"}
	}
	return nil
}

type ChiselSpec struct {
	ServerPort  Port   `json:"server_port"`
	ListenPort  Port   `json:"listen_port"` // legacy alias for server_port
	Auth        string `json:"auth"`
	Fingerprint string `json:"fingerprint"`
	UseIPv6     bool   `json:"use_ipv6"`
	ServerAddr  string `json:"server_addr"`
	ReverseSpec string `json:"reverse_spec"`
	RemotePort  Port   `json:"remote_port"`
	LocalAddr   string `json:"local_addr"`
	LocalPort   Port   `json:"local_port"`
}

func (s *ChiselSpec) Core() string { return CoreChisel }

func (s *ChiselSpec) Port() int {
	if s.ServerPort != 0 {
		return int(s.ServerPort)
	}
	return int(s.ListenPort)
}

func (s *ChiselSpec) Validate() error {
	if s.Port() == 0 {
		return &MissingFieldError{Core: CoreChisel, Field: "server_port"}
	}
	return nil
}

type FrpSpec struct {
	BindPort   Port   `json:"bind_port"`
	Token      string `json:"token"`
	ServerAddr string `json:"server_addr"`
	LocalIP    string `json:"local_ip"`
	LocalPort  Port   `json:"local_port"`
	RemotePort Port   `json:"remote_port"`
	ListenPort Port   `json:"listen_port"` // legacy alias for remote_port
	Type       string `json:"type"`
}

func (s *FrpSpec) Core() string { return CoreFrp }

// Bind returns the frps bind port, defaulting to 7000.
func (s *FrpSpec) Bind() int {
	if s.BindPort != 0 {
		return int(s.BindPort)
	}
	return 7000
}

func (s *FrpSpec) TunnelType() string {
	if s.Type == "" {
		return "tcp"
	}
	return s.Type
}

func (s *FrpSpec) Validate() error {
	// bind_port always has a usable default
	return nil
}

type BackhaulSpec struct {
	BindPort  Port   `json:"bind_port"`
	Token     string `json:"token"`
	Transport string `json:"transport"`

	// Raw carries the full parameter bag; backhaul's node-side config is
	// pushed as-is rather than remapped.
	Raw map[string]any `json:"-"`
}

func (s *BackhaulSpec) Core() string { return CoreBackhaul }

func (s *BackhaulSpec) TransportName() string {
	if s.Transport == "" {
		return "tcp"
	}
	return s.Transport
}

func (s *BackhaulSpec) Validate() error {
	if s.BindPort == 0 {
		return &MissingFieldError{Core: CoreBackhaul, Field: "bind_port"}
	}
	return nil
}

// Parse decodes a tunnel's persisted spec JSON into the core's typed variant.
func Parse(core, raw string) (Spec, error) {
	if raw == "" {
		raw = "{}"
	}

	var spec Spec
	switch core {
	case CoreRathole:
		spec = &RatholeSpec{}
	case CoreChisel:
		spec = &ChiselSpec{}
	case CoreFrp:
		spec = &FrpSpec{}
	case CoreBackhaul:
		b := &BackhaulSpec{}
		if err := json.Unmarshal([]byte(raw), &b.Raw); err != nil {
			return nil, fmt.Errorf("parse %s spec: %w", core, err)
		}
		spec = b
	default:
		return nil, fmt.Errorf("unknown core: %s", core)
	}

	if err := json.Unmarshal([]byte(raw), spec); err != nil {
		return nil, fmt.Errorf("parse %s spec: %w", core, err)
	}
	return spec, nil
}
