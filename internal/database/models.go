package database

import "time"

// Tunnel is one logical forwarding rule implemented by a backend core.
// Spec holds the core-specific parameter bag as JSON text; it is parsed into
// a typed variant by the corespec package.
type Tunnel struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Core      string    `gorm:"not null;index" json:"core"`
	Status    string    `gorm:"not null;default:inactive;index" json:"status"`
	NodeID    string    `gorm:"size:64;index" json:"node_id"`
	Spec      string    `gorm:"type:text;default:'{}'" json:"spec"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Node is a remote host running the tunnel client agent.
type Node struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	Address   string    `gorm:"not null" json:"address"`
	APIToken  string    `json:"-"` // fernet-encrypted
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CoreResetConfig is the per-core reset schedule. One row per core, created
// lazily with defaults on first read.
type CoreResetConfig struct {
	Core            string     `gorm:"primaryKey;size:32" json:"core"`
	Enabled         bool       `gorm:"not null;default:false" json:"enabled"`
	IntervalMinutes int        `gorm:"not null;default:10" json:"interval_minutes"`
	LastReset       *time.Time `json:"last_reset"`
	NextReset       *time.Time `json:"next_reset"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// RecomputeNextReset derives NextReset from the current schedule state:
// lastReset + interval when a reset has happened, now + interval when the
// schedule was just enabled, nil whenever the schedule is disabled.
func (c *CoreResetConfig) RecomputeNextReset(now time.Time) {
	if !c.Enabled || c.IntervalMinutes < 1 {
		c.NextReset = nil
		return
	}
	base := now
	if c.LastReset != nil {
		base = *c.LastReset
	}
	next := base.Add(time.Duration(c.IntervalMinutes) * time.Minute)
	c.NextReset = &next
}

// MarkReset records a completed reset pass. NextReset is recomputed only if
// the schedule is still enabled.
func (c *CoreResetConfig) MarkReset(now time.Time) {
	c.LastReset = &now
	if c.Enabled && c.IntervalMinutes >= 1 {
		next := now.Add(time.Duration(c.IntervalMinutes) * time.Minute)
		c.NextReset = &next
	}
}

// Setting is a key/value row for panel-internal state (e.g. the fernet key).
type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
