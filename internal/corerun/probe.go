package corerun

import (
	"fmt"
	"net"
	"time"
)

// ProbeResult classifies a post-start reachability check. All outcomes are
// advisory: a server may simply be slow to bind.
type ProbeResult int

const (
	Reachable ProbeResult = iota
	Unreachable
	ProbeError
)

// Probe attempts a short TCP connect to the port on loopback.
func Probe(port int, timeout time.Duration) (ProbeResult, error) {
	if port <= 0 || port > 65535 {
		return ProbeError, fmt.Errorf("invalid probe port %d", port)
	}

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), timeout)
	if err != nil {
		return Unreachable, nil
	}
	conn.Close()
	return Reachable, nil
}
