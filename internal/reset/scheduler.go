package reset

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tunnelgate/panel/internal/corespec"
	"github.com/tunnelgate/panel/internal/database"
)

// StartScheduler runs a per-minute job that fires any core reset whose
// NextReset has come due. The returned cron should be stopped at shutdown.
func StartScheduler(ctx context.Context, orch *Orchestrator) *cron.Cron {
	c := cron.New()
	c.AddFunc("@every 1m", func() {
		CheckDueResets(ctx, orch)
	})
	c.Start()
	log.Printf("Reset scheduler started")
	return c
}

// CheckDueResets resets every core whose schedule is enabled and due, then
// advances its schedule.
func CheckDueResets(ctx context.Context, orch *Orchestrator) {
	now := time.Now().UTC()

	for _, core := range corespec.Cores() {
		cfg, err := database.GetOrCreateResetConfig(core)
		if err != nil {
			log.Printf("Reset scheduler: load %s config: %v", core, err)
			continue
		}
		if !cfg.Enabled || cfg.NextReset == nil || cfg.NextReset.After(now) {
			continue
		}

		log.Printf("Scheduled reset due for %s core", core)
		if err := orch.ResetCore(ctx, core); err != nil {
			log.Printf("Reset scheduler: reset %s: %v", core, err)
			continue
		}

		cfg.MarkReset(now)
		if err := database.SaveResetConfig(cfg); err != nil {
			log.Printf("Reset scheduler: save %s config: %v", core, err)
		}
	}
}
