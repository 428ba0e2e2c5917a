// Package reset restarts a core's local server processes and pushes
// re-derived client configuration to every node touched by that core's
// active tunnels. The pass is best-effort: one tunnel's failure never
// aborts the batch, and there is no rollback.
package reset

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tunnelgate/panel/internal/corerun"
	"github.com/tunnelgate/panel/internal/corespec"
	"github.com/tunnelgate/panel/internal/database"
	"github.com/tunnelgate/panel/internal/nodeapi"
)

// Settle delays between restarts and pushes, to let sockets quiesce.
// Tests shorten these.
var (
	restartSettle = 500 * time.Millisecond
	applySettle   = 500 * time.Millisecond
)

type Orchestrator struct {
	registry *corerun.Registry
	client   nodeapi.Client
}

func New(registry *corerun.Registry, client nodeapi.Client) *Orchestrator {
	return &Orchestrator{registry: registry, client: client}
}

// ResetCore drives one core's reset pass over all of its active tunnels:
// stop-then-start of each local server, then a config push to each touched
// node. Per-tunnel failures are logged and skipped.
func (o *Orchestrator) ResetCore(ctx context.Context, core string) error {
	if !corespec.Known(core) {
		return fmt.Errorf("invalid core: %s", core)
	}

	tunnels, err := database.ActiveTunnels(core)
	if err != nil {
		return fmt.Errorf("load active %s tunnels: %w", core, err)
	}

	o.restartServers(core, tunnels)
	o.applyToNodes(ctx, core, tunnels)
	return nil
}

func (o *Orchestrator) restartServers(core string, tunnels []database.Tunnel) {
	mgr, ok := o.registry.Get(core)
	if !ok {
		log.Printf("No %s manager registered, skipping local restarts", core)
		return
	}

	for _, t := range tunnels {
		spec, err := corespec.Parse(core, t.Spec)
		if err != nil {
			log.Printf("Error restarting %s server for tunnel %s: %v", core, t.ID, err)
			continue
		}
		if err := spec.Validate(); err != nil {
			// Missing required parameter: skip this tunnel's local restart.
			log.Printf("Skipping %s server restart for tunnel %s: %v", core, t.ID, err)
			continue
		}

		mgr.Stop(t.ID)
		time.Sleep(restartSettle)
		if err := mgr.Start(t.ID, spec); err != nil {
			log.Printf("Error restarting %s server for tunnel %s: %v", core, t.ID, err)
		}
	}
}

func (o *Orchestrator) applyToNodes(ctx context.Context, core string, tunnels []database.Tunnel) {
	for _, nodeID := range distinctNodes(tunnels) {
		if _, err := database.GetNode(nodeID); err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Printf("Skipping unknown node %s during %s reset: %v", nodeID, core, err)
			}
			continue
		}

		for _, t := range tunnels {
			if t.NodeID != nodeID {
				continue
			}

			spec, err := corespec.Parse(core, t.Spec)
			if err != nil {
				log.Printf("Error restarting %s client for tunnel %s on node %s: %v", core, t.ID, nodeID, err)
				continue
			}
			payload, err := corespec.NodePayload(spec)
			if err != nil {
				log.Printf("Error restarting %s client for tunnel %s on node %s: %v", core, t.ID, nodeID, err)
				continue
			}

			err = o.client.ApplyTunnel(ctx, nodeID, nodeapi.ApplyRequest{
				TunnelID: t.ID,
				Core:     core,
				Spec:     payload,
			})
			if err != nil {
				log.Printf("Error restarting %s client for tunnel %s on node %s: %v", core, t.ID, nodeID, err)
				continue
			}
			time.Sleep(applySettle)
		}
	}
}

// distinctNodes returns the unique node IDs of the tunnels, in first-seen order.
func distinctNodes(tunnels []database.Tunnel) []string {
	seen := make(map[string]struct{})
	var nodes []string
	for _, t := range tunnels {
		if t.NodeID == "" {
			continue
		}
		if _, ok := seen[t.NodeID]; ok {
			continue
		}
		seen[t.NodeID] = struct{}{}
		nodes = append(nodes, t.NodeID)
	}
	return nodes
}
