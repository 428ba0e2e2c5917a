package reset

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tunnelgate/panel/internal/corerun"
	"github.com/tunnelgate/panel/internal/corespec"
	"github.com/tunnelgate/panel/internal/database"
	"github.com/tunnelgate/panel/internal/nodeapi"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	database.DB = db
	if err := db.AutoMigrate(&database.Tunnel{}, &database.Node{}, &database.CoreResetConfig{}, &database.Setting{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func shortenSettle(t *testing.T) {
	t.Helper()
	oldRestart, oldApply := restartSettle, applySettle
	restartSettle = time.Millisecond
	applySettle = time.Millisecond
	t.Cleanup(func() {
		restartSettle, applySettle = oldRestart, oldApply
	})
}

// fakeNodeClient records applies and serves canned statuses.
type fakeNodeClient struct {
	mu      sync.Mutex
	applied []nodeapi.ApplyRequest
}

func (f *fakeNodeClient) GetTunnelStatus(ctx context.Context, nodeID, token string) (*nodeapi.TunnelStatus, error) {
	return &nodeapi.TunnelStatus{Status: "ok"}, nil
}

func (f *fakeNodeClient) ApplyTunnel(ctx context.Context, nodeID string, req nodeapi.ApplyRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, req)
	return nil
}

func (f *fakeNodeClient) appliedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, len(f.applied))
	for i, req := range f.applied {
		ids[i] = req.TunnelID
	}
	return ids
}

// newRatholeManager builds a rathole manager whose "server" is a shell script
// that sleeps forever.
func newRatholeManager(t *testing.T) *corerun.Manager {
	t.Helper()
	dir := t.TempDir()
	bin := filepath.Join(dir, "rathole")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nexec sleep 60\n"), 0755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	backend := &corerun.Backend{
		Name:         corespec.CoreRathole,
		BinaryPath:   bin,
		FallbackName: "no-such-fallback",
		FileExt:      ".toml",
		Render: func(tunnelID string, spec corespec.Spec, configPath string) (*corerun.Rendered, error) {
			return &corerun.Rendered{
				Config: "test config\n",
				Args:   []string{"-s", configPath},
			}, nil
		},
	}

	mgr, err := corerun.NewManager(backend, t.TempDir())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	t.Cleanup(mgr.CleanupAll)
	return mgr
}

func createTunnel(t *testing.T, id, core, nodeID, spec string) {
	t.Helper()
	row := database.Tunnel{ID: id, Name: id, Core: core, Status: "active", NodeID: nodeID, Spec: spec}
	if err := database.DB.Create(&row).Error; err != nil {
		t.Fatalf("create tunnel %s: %v", id, err)
	}
}

func TestResetCoreSkipsInvalidTunnelAndContinues(t *testing.T) {
	setupTestDB(t)
	shortenSettle(t)

	if err := database.DB.Create(&database.Node{ID: "n1", Name: "n1", Address: "10.0.0.1"}).Error; err != nil {
		t.Fatalf("create node: %v", err)
	}
	// t1 has no token, which rathole requires for the local server
	createTunnel(t, "t1", "rathole", "n1", `{"remote_addr":"h:23333","remote_port":8989}`)
	createTunnel(t, "t2", "rathole", "n1", `{"remote_addr":"h:23334","token":"abc","remote_port":8990}`)

	mgr := newRatholeManager(t)
	fake := &fakeNodeClient{}
	orch := New(corerun.NewRegistry(mgr), fake)

	if err := orch.ResetCore(context.Background(), "rathole"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if mgr.IsRunning("t1") {
		t.Error("t1 restarted despite missing token")
	}
	if !mgr.IsRunning("t2") {
		t.Error("t2 not restarted")
	}

	// remote pushes run independently of local-restart validation
	ids := fake.appliedIDs()
	pushed := map[string]bool{}
	for _, id := range ids {
		pushed[id] = true
	}
	if len(ids) != 2 || !pushed["t1"] || !pushed["t2"] {
		t.Errorf("applied = %v, want t1 and t2", ids)
	}
}

func TestResetCoreWithoutManagerStillPushes(t *testing.T) {
	setupTestDB(t)
	shortenSettle(t)

	if err := database.DB.Create(&database.Node{ID: "n1", Name: "n1", Address: "10.0.0.1"}).Error; err != nil {
		t.Fatalf("create node: %v", err)
	}
	createTunnel(t, "t1", "frp", "n1", `{"bind_port":7001,"token":"x"}`)

	fake := &fakeNodeClient{}
	orch := New(corerun.NewRegistry(), fake)

	if err := orch.ResetCore(context.Background(), "frp"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if ids := fake.appliedIDs(); len(ids) != 1 || ids[0] != "t1" {
		t.Errorf("applied = %v", ids)
	}
}

func TestResetCoreSkipsUnknownNode(t *testing.T) {
	setupTestDB(t)
	shortenSettle(t)

	// node row does not exist
	createTunnel(t, "t1", "frp", "ghost", `{"bind_port":7001}`)

	fake := &fakeNodeClient{}
	orch := New(corerun.NewRegistry(), fake)

	if err := orch.ResetCore(context.Background(), "frp"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if ids := fake.appliedIDs(); len(ids) != 0 {
		t.Errorf("applied = %v, want none for missing node", ids)
	}
}

func TestResetCoreRejectsUnknownCore(t *testing.T) {
	setupTestDB(t)
	orch := New(corerun.NewRegistry(), &fakeNodeClient{})
	if err := orch.ResetCore(context.Background(), "ssh"); err == nil {
		t.Fatal("expected error for unknown core")
	}
}

func TestCheckDueResets(t *testing.T) {
	setupTestDB(t)
	shortenSettle(t)

	past := time.Now().UTC().Add(-time.Minute)
	due := &database.CoreResetConfig{Core: "rathole", Enabled: true, IntervalMinutes: 10, NextReset: &past}
	if err := database.DB.Create(due).Error; err != nil {
		t.Fatalf("create config: %v", err)
	}

	orch := New(corerun.NewRegistry(), &fakeNodeClient{})
	CheckDueResets(context.Background(), orch)

	cfg, err := database.GetOrCreateResetConfig("rathole")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.LastReset == nil {
		t.Fatal("due reset did not record LastReset")
	}
	if cfg.NextReset == nil || !cfg.NextReset.After(time.Now().UTC()) {
		t.Fatalf("next = %v, want advanced into the future", cfg.NextReset)
	}

	// disabled cores are left alone
	disabled, err := database.GetOrCreateResetConfig("frp")
	if err != nil {
		t.Fatalf("frp config: %v", err)
	}
	if disabled.LastReset != nil {
		t.Error("disabled core was reset")
	}
}
