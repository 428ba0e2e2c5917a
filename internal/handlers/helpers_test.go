package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/tunnelgate/panel/internal/corerun"
	"github.com/tunnelgate/panel/internal/database"
	"github.com/tunnelgate/panel/internal/nodeapi"
	"github.com/tunnelgate/panel/internal/reset"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeNodeClient serves canned per-node statuses and records applies.
type fakeNodeClient struct {
	mu       sync.Mutex
	statuses map[string]string // nodeID -> status
	errs     map[string]error  // nodeID -> transport error
	applied  []nodeapi.ApplyRequest
}

func (f *fakeNodeClient) GetTunnelStatus(ctx context.Context, nodeID, token string) (*nodeapi.TunnelStatus, error) {
	if err := f.errs[nodeID]; err != nil {
		return nil, err
	}
	status, ok := f.statuses[nodeID]
	if !ok {
		status = "ok"
	}
	return &nodeapi.TunnelStatus{Status: status}, nil
}

func (f *fakeNodeClient) ApplyTunnel(ctx context.Context, nodeID string, req nodeapi.ApplyRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, req)
	return nil
}

// setupTest wires an in-memory database and fresh handler globals, returning
// the fake node client for assertions.
func setupTest(t *testing.T) *fakeNodeClient {
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

	fake := &fakeNodeClient{
		statuses: map[string]string{},
		errs:     map[string]error{},
	}
	Managers = corerun.NewRegistry()
	NodeClient = fake
	ResetOrch = reset.New(Managers, fake)
	return fake
}

func newTestRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/health", GetCoreHealth)
	r.Get("/reset-config", GetResetConfigs)
	r.Put("/reset-config/{core}", UpdateResetConfig)
	r.Post("/reset/{core}", ResetCore)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tunnels", ListTunnels)
		r.Post("/tunnels", CreateTunnel)
		r.Get("/tunnels/{id}", GetTunnelState)
		r.Post("/tunnels/{id}/start", StartTunnel)
		r.Post("/tunnels/{id}/stop", StopTunnel)
		r.Get("/nodes", ListNodes)
		r.Post("/nodes", CreateNode)
	})
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}
