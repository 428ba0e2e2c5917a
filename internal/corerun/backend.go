package corerun

import (
	"fmt"
	"strings"

	"github.com/tunnelgate/panel/internal/config"
	"github.com/tunnelgate/panel/internal/corespec"
)

// Rendered is one tunnel's launch recipe: the configuration artifact text and
// the argv tail for the server binary.
type Rendered struct {
	Config   string   // artifact written to disk, regenerated on every start
	Args     []string // argv after the binary name
	BindAddr string   // address the server listens on, for log preamble
	// ProbePort is probed on loopback after start; 0 disables the probe.
	ProbePort int
}

// Backend describes how one core's server binary is configured and launched.
type Backend struct {
	Name         string
	BinaryPath   string // primary absolute path
	FallbackName string // PATH-resolved fallback
	FileExt      string
	Render       func(tunnelID string, spec corespec.Spec, configPath string) (*Rendered, error)
}

// Backends builds the four built-in core backends, applying any cores.yaml
// binary overrides.
func Backends(overrides map[string]config.CoreOverride) map[string]*Backend {
	backends := map[string]*Backend{
		corespec.CoreRathole: {
			Name:         corespec.CoreRathole,
			BinaryPath:   "/usr/local/bin/rathole",
			FallbackName: "rathole",
			FileExt:      ".toml",
			Render:       renderRathole,
		},
		corespec.CoreFrp: {
			Name:         corespec.CoreFrp,
			BinaryPath:   "/usr/local/bin/frps",
			FallbackName: "frps",
			FileExt:      ".toml",
			Render:       renderFrp,
		},
		corespec.CoreBackhaul: {
			Name:         corespec.CoreBackhaul,
			BinaryPath:   "/usr/local/bin/backhaul",
			FallbackName: "backhaul",
			FileExt:      ".toml",
			Render:       renderBackhaul,
		},
		corespec.CoreChisel: {
			Name:         corespec.CoreChisel,
			BinaryPath:   "/usr/local/bin/chisel",
			FallbackName: "chisel",
			FileExt:      ".conf",
			Render:       renderChisel,
		},
	}

	for name, ov := range overrides {
		b, ok := backends[name]
		if !ok {
			continue
		}
		if ov.Binary != "" {
			b.BinaryPath = ov.Binary
		}
		if ov.Fallback != "" {
			b.FallbackName = ov.Fallback
		}
	}
	return backends
}

func renderRathole(tunnelID string, spec corespec.Spec, configPath string) (*Rendered, error) {
	s, ok := spec.(*corespec.RatholeSpec)
	if !ok {
		return nil, fmt.Errorf("rathole backend: unexpected spec type %T", spec)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	// remote_addr is "host:port"; the server binds all interfaces on that port.
	i := strings.LastIndex(s.RemoteAddr, ":")
	if i < 0 {
		return nil, fmt.Errorf("invalid remote_addr format: %s", s.RemoteAddr)
	}
	port := s.RemoteAddr[i+1:]
	bindAddr := "0.0.0.0:" + port

	var bindPort int
	if _, err := fmt.Sscanf(port, "%d", &bindPort); err != nil {
		return nil, fmt.Errorf("invalid remote_addr port %q: %w", port, err)
	}

	cfg := fmt.Sprintf(`[server]
bind_addr = "%s"
default_token = "%s"

[server.services.%s]
bind_addr = "0.0.0.0:%d"
`, bindAddr, s.Token, tunnelID, s.ProxyPort())

	return &Rendered{
		Config:    cfg,
		Args:      []string{"-s", configPath},
		BindAddr:  bindAddr,
		ProbePort: bindPort,
	}, nil
}

func renderFrp(tunnelID string, spec corespec.Spec, configPath string) (*Rendered, error) {
	s, ok := spec.(*corespec.FrpSpec)
	if !ok {
		return nil, fmt.Errorf("frp backend: unexpected spec type %T", spec)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "bindAddr = \"0.0.0.0\"\n")
	fmt.Fprintf(&b, "bindPort = %d\n", s.Bind())
	if s.Token != "" {
		fmt.Fprintf(&b, "auth.method = \"token\"\n")
		fmt.Fprintf(&b, "auth.token = %q\n", s.Token)
	}

	return &Rendered{
		Config:    b.String(),
		Args:      []string{"-c", configPath},
		BindAddr:  fmt.Sprintf("0.0.0.0:%d", s.Bind()),
		ProbePort: s.Bind(),
	}, nil
}

func renderBackhaul(tunnelID string, spec corespec.Spec, configPath string) (*Rendered, error) {
	s, ok := spec.(*corespec.BackhaulSpec)
	if !ok {
		return nil, fmt.Errorf("backhaul backend: unexpected spec type %T", spec)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[server]\n")
	fmt.Fprintf(&b, "bind_addr = \"0.0.0.0:%d\"\n", int(s.BindPort))
	fmt.Fprintf(&b, "transport = %q\n", s.TransportName())
	if s.Token != "" {
		fmt.Fprintf(&b, "token = %q\n", s.Token)
	}

	return &Rendered{
		Config:    b.String(),
		Args:      []string{"-c", configPath},
		BindAddr:  fmt.Sprintf("0.0.0.0:%d", int(s.BindPort)),
		ProbePort: int(s.BindPort),
	}, nil
}

func renderChisel(tunnelID string, spec corespec.Spec, configPath string) (*Rendered, error) {
	s, ok := spec.(*corespec.ChiselSpec)
	if !ok {
		return nil, fmt.Errorf("chisel backend: unexpected spec type %T", spec)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	host := "0.0.0.0"
	if s.UseIPv6 {
		host = "::"
	}

	// chisel takes its settings as flags; the artifact records them so stop
	// and postmortem tooling treat every core uniformly.
	var b strings.Builder
	fmt.Fprintf(&b, "host = %q\n", host)
	fmt.Fprintf(&b, "port = %d\n", s.Port())
	if s.Auth != "" {
		fmt.Fprintf(&b, "auth = %q\n", s.Auth)
	}

	args := []string{"server", "--reverse", "--host", host, "--port", fmt.Sprintf("%d", s.Port())}
	if s.Auth != "" {
		args = append(args, "--auth", s.Auth)
	}

	return &Rendered{
		Config:    b.String(),
		Args:      args,
		BindAddr:  fmt.Sprintf("%s:%d", host, s.Port()),
		ProbePort: s.Port(),
	}, nil
}
