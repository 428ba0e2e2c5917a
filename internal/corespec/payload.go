package corespec

import (
	"fmt"
	"strings"
)

// NodePayload re-derives the client-side configuration pushed to a node's
// agent for one tunnel. Field names differ per core: each core's client
// expects its own schema, not the server-side spec.
func NodePayload(spec Spec) (map[string]any, error) {
	switch s := spec.(type) {
	case *RatholeSpec:
		host := s.RemoteAddr
		if i := strings.Index(host, ":"); i >= 0 {
			host = host[:i]
		}
		localAddr := s.LocalAddr
		if localAddr == "" {
			localAddr = "127.0.0.1"
		}
		return map[string]any{
			"remote_addr": fmt.Sprintf("%s:%d", host, s.ProxyPort()),
			"token":       s.Token,
			"local_addr":  localAddr,
			"local_port":  int(s.LocalPort),
		}, nil

	case *ChiselSpec:
		serverAddr := s.ServerAddr
		if serverAddr == "" {
			serverAddr = "127.0.0.1"
		}
		reverse := s.ReverseSpec
		if reverse == "" {
			localAddr := s.LocalAddr
			if localAddr == "" {
				localAddr = "127.0.0.1"
			}
			reverse = fmt.Sprintf("R:%d:%s:%d", int(s.RemotePort), localAddr, int(s.LocalPort))
		}
		return map[string]any{
			"server_url":   fmt.Sprintf("http://%s:%d", serverAddr, s.Port()),
			"reverse_spec": reverse,
			"auth":         s.Auth,
			"fingerprint":  s.Fingerprint,
		}, nil

	case *FrpSpec:
		serverAddr := s.ServerAddr
		if serverAddr == "" {
			serverAddr = "127.0.0.1"
		}
		localIP := s.LocalIP
		if localIP == "" {
			localIP = "127.0.0.1"
		}
		remotePort := int(s.RemotePort)
		if remotePort == 0 {
			remotePort = int(s.ListenPort)
		}
		return map[string]any{
			"server_addr": serverAddr,
			"server_port": s.Bind(),
			"token":       s.Token,
			"local_ip":    localIP,
			"local_port":  int(s.LocalPort),
			"remote_port": remotePort,
			"type":        s.TunnelType(),
		}, nil

	case *BackhaulSpec:
		// backhaul clients consume the server spec unchanged
		payload := make(map[string]any, len(s.Raw))
		for k, v := range s.Raw {
			payload[k] = v
		}
		return payload, nil
	}

	return nil, fmt.Errorf("unknown spec type %T", spec)
}
