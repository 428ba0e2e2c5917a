package corerun

import (
	"strings"
	"testing"

	"github.com/tunnelgate/panel/internal/config"
	"github.com/tunnelgate/panel/internal/corespec"
)

func TestBackendsOverrides(t *testing.T) {
	backends := Backends(map[string]config.CoreOverride{
		"rathole": {Binary: "/opt/bin/rathole", Fallback: "rathole-v2"},
		"ignored": {Binary: "/never"},
	})

	if got := backends["rathole"].BinaryPath; got != "/opt/bin/rathole" {
		t.Errorf("rathole binary = %q", got)
	}
	if got := backends["rathole"].FallbackName; got != "rathole-v2" {
		t.Errorf("rathole fallback = %q", got)
	}
	if got := backends["frps"]; got != nil {
		t.Errorf("unexpected backend %v", got)
	}
	if backends["frp"].BinaryPath != "/usr/local/bin/frps" {
		t.Errorf("frp binary changed without override: %q", backends["frp"].BinaryPath)
	}
	if len(backends) != 4 {
		t.Errorf("expected 4 backends, got %d", len(backends))
	}
}

func TestRenderFrp(t *testing.T) {
	spec := &corespec.FrpSpec{BindPort: 7100, Token: "secret"}
	r, err := renderFrp("t1", spec, "/data/frp/t1.toml")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"bindPort = 7100", `auth.token = "secret"`, `auth.method = "token"`} {
		if !strings.Contains(r.Config, want) {
			t.Errorf("frp config missing %q:\n%s", want, r.Config)
		}
	}
	if r.ProbePort != 7100 {
		t.Errorf("probe port = %d", r.ProbePort)
	}
	if len(r.Args) != 2 || r.Args[0] != "-c" || r.Args[1] != "/data/frp/t1.toml" {
		t.Errorf("args = %v", r.Args)
	}
}

func TestRenderFrpNoToken(t *testing.T) {
	r, err := renderFrp("t1", &corespec.FrpSpec{}, "/tmp/t1.toml")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(r.Config, "auth.") {
		t.Errorf("auth section rendered without token:\n%s", r.Config)
	}
	if !strings.Contains(r.Config, "bindPort = 7000") {
		t.Errorf("default bind port missing:\n%s", r.Config)
	}
}

func TestRenderBackhaul(t *testing.T) {
	spec := &corespec.BackhaulSpec{BindPort: 3080, Token: "tok", Transport: "ws"}
	r, err := renderBackhaul("t1", spec, "/tmp/t1.toml")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{`bind_addr = "0.0.0.0:3080"`, `transport = "ws"`, `token = "tok"`} {
		if !strings.Contains(r.Config, want) {
			t.Errorf("backhaul config missing %q:\n%s", want, r.Config)
		}
	}
}

func TestRenderChisel(t *testing.T) {
	spec := &corespec.ChiselSpec{ServerPort: 8000, Auth: "u:p", UseIPv6: true}
	r, err := renderChisel("t1", spec, "/tmp/t1.conf")
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	args := strings.Join(r.Args, " ")
	for _, want := range []string{"server", "--reverse", "--host ::", "--port 8000", "--auth u:p"} {
		if !strings.Contains(args, want) {
			t.Errorf("chisel args missing %q: %v", want, r.Args)
		}
	}
	if r.BindAddr != ":::8000" {
		t.Errorf("bind addr = %q", r.BindAddr)
	}
	if r.ProbePort != 8000 {
		t.Errorf("probe port = %d", r.ProbePort)
	}
}

func TestRenderRejectsWrongSpecType(t *testing.T) {
	if _, err := renderRathole("t1", &corespec.FrpSpec{}, "/tmp/x"); err == nil {
		t.Fatal("rathole render accepted frp spec")
	}
}
