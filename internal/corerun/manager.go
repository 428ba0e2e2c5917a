package corerun

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tunnelgate/panel/internal/corespec"
)

// Timing knobs. Tests shorten these.
var (
	startupGrace = 1 * time.Second
	stopGrace    = 5 * time.Second
	probeTimeout = 1 * time.Second
)

// logTailBytes is how much of a dead server's log is embedded in the error.
const logTailBytes = 500

type serverRecord struct {
	handle    *Handle
	logFile   *os.File
	bindAddr  string
	probePort int
	startedAt time.Time
}

// Manager owns every server process of one core: at most one live process per
// tunnel ID. All state is guarded by mu so concurrent HTTP handlers cannot
// race a stop against a start.
type Manager struct {
	backend   *Backend
	configDir string

	mu          sync.Mutex
	records     map[string]*serverRecord
	configPaths map[string]string
}

// NewManager creates the per-core manager and its config directory
// (<dataPath>/<core>), which lives for the whole panel process.
func NewManager(backend *Backend, dataPath string) (*Manager, error) {
	dir := filepath.Join(dataPath, backend.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create %s config dir: %w", backend.Name, err)
	}
	return &Manager{
		backend:     backend,
		configDir:   dir,
		records:     make(map[string]*serverRecord),
		configPaths: make(map[string]string),
	}, nil
}

func (m *Manager) Core() string      { return m.backend.Name }
func (m *Manager) ConfigDir() string { return m.configDir }

// Start launches the core's server for a tunnel. If a server already exists
// for the ID it is stopped first; start is a restart, never additive.
func (m *Manager) Start(tunnelID string, spec corespec.Spec) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[tunnelID]; ok {
		log.Printf("%s server for tunnel %s already exists, stopping it first", m.backend.Name, tunnelID)
		m.stopLocked(tunnelID)
	}

	configPath := filepath.Join(m.configDir, tunnelID+m.backend.FileExt)
	rendered, err := m.backend.Render(tunnelID, spec, configPath)
	if err != nil {
		return fmt.Errorf("render %s config for tunnel %s: %w", m.backend.Name, tunnelID, err)
	}

	if err := os.WriteFile(configPath, []byte(rendered.Config), 0644); err != nil {
		return fmt.Errorf("write %s config for tunnel %s: %w", m.backend.Name, tunnelID, err)
	}
	m.configPaths[tunnelID] = configPath

	logPath := filepath.Join(m.configDir, fmt.Sprintf("%s_%s.log", m.backend.Name, tunnelID))

	handle, logFile, err := m.launch(tunnelID, logPath, configPath, rendered)
	if err != nil {
		return err
	}

	rec := &serverRecord{
		handle:    handle,
		logFile:   logFile,
		bindAddr:  rendered.BindAddr,
		probePort: rendered.ProbePort,
		startedAt: time.Now(),
	}
	m.records[tunnelID] = rec

	// Give the server a moment, then make sure it did not die on startup.
	time.Sleep(startupGrace)
	if !handle.Alive() {
		tail := readLogTail(logPath)
		code := handle.ExitCode()
		delete(m.records, tunnelID)
		delete(m.configPaths, tunnelID)
		logFile.Close()
		return fmt.Errorf("%s server failed to start (exit code: %d): %s", m.backend.Name, code, tail)
	}

	if rendered.ProbePort > 0 {
		switch result, perr := Probe(rendered.ProbePort, probeTimeout); result {
		case Unreachable:
			log.Printf("%s server port %d not listening after start, but process is running. PID: %d",
				m.backend.Name, rendered.ProbePort, handle.Pid())
		case ProbeError:
			log.Printf("Could not verify %s server port is listening: %v", m.backend.Name, perr)
		}
	}

	log.Printf("Started %s server for tunnel %s on %s (pid %d)", m.backend.Name, tunnelID, rendered.BindAddr, handle.Pid())
	return nil
}

// launch opens the per-tunnel log, writes the diagnostic preamble and spawns
// the server binary. If the primary binary path does not exist it retries
// with the PATH-resolved fallback name and an abbreviated preamble.
func (m *Manager) launch(tunnelID, logPath, configPath string, rendered *Rendered) (*Handle, *os.File, error) {
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s log for tunnel %s: %w", m.backend.Name, tunnelID, err)
	}

	fmt.Fprintf(logFile, "Starting %s server for tunnel %s\n", m.backend.Name, tunnelID)
	fmt.Fprintf(logFile, "Command: %s %s\n", m.backend.BinaryPath, strings.Join(rendered.Args, " "))
	fmt.Fprintf(logFile, "Bind address: %s\n", rendered.BindAddr)
	fmt.Fprintf(logFile, "Config file: %s\nConfig content:\n%s\n", configPath, rendered.Config)

	handle, err := startHandle(m.command(m.backend.BinaryPath, rendered.Args, logFile))
	if err == nil {
		return handle, logFile, nil
	}
	if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, exec.ErrNotFound) {
		logFile.Close()
		return nil, nil, fmt.Errorf("start %s server for tunnel %s: %w", m.backend.Name, tunnelID, err)
	}

	// Primary binary missing: fall back to whatever PATH provides.
	logFile.Close()
	logFile, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s log for tunnel %s: %w", m.backend.Name, tunnelID, err)
	}
	fmt.Fprintf(logFile, "Starting %s server (system binary) for tunnel %s\n", m.backend.Name, tunnelID)

	handle, err = startHandle(m.command(m.backend.FallbackName, rendered.Args, logFile))
	if err != nil {
		logFile.Close()
		return nil, nil, fmt.Errorf("start %s server for tunnel %s: %w", m.backend.Name, tunnelID, err)
	}
	return handle, logFile, nil
}

func (m *Manager) command(binary string, args []string, logFile *os.File) *exec.Cmd {
	cmd := exec.Command(binary, args...)
	cmd.Dir = m.configDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	return cmd
}

// Stop tears down the tunnel's server. It never fails: every problem along
// the way is logged and absorbed, so Stop is safe to call from any cleanup
// or error-recovery path. Stopping an unknown tunnel only removes any stale
// rendered config still tracked under the ID.
func (m *Manager) Stop(tunnelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked(tunnelID)
}

func (m *Manager) stopLocked(tunnelID string) {
	if rec, ok := m.records[tunnelID]; ok {
		rec.handle.Terminate(stopGrace)
		rec.logFile.Close()
		delete(m.records, tunnelID)
		log.Printf("Stopped %s server for tunnel %s", m.backend.Name, tunnelID)
	}

	if path, ok := m.configPaths[tunnelID]; ok {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("Failed to delete config file %s: %v", path, err)
		}
		delete(m.configPaths, tunnelID)
	}
}

// IsRunning reports whether a live server exists for the tunnel. The answer
// reflects the actual process state, not a stored flag.
func (m *Manager) IsRunning(tunnelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[tunnelID]
	return ok && rec.handle.Alive()
}

// ActiveServers returns the tunnel IDs with a live server, pruning records
// whose process has died. This lazy reap is the only garbage collection the
// manager does; there is no background sweep.
func (m *Manager) ActiveServers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var active []string
	for id, rec := range m.records {
		if rec.handle.Alive() {
			active = append(active, id)
			continue
		}
		rec.logFile.Close()
		delete(m.records, id)
		delete(m.configPaths, id)
	}
	sort.Strings(active)
	return active
}

// CleanupAll stops every tracked tunnel; used at panel shutdown.
func (m *Manager) CleanupAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make(map[string]struct{})
	for id := range m.records {
		ids[id] = struct{}{}
	}
	for id := range m.configPaths {
		ids[id] = struct{}{}
	}
	for id := range ids {
		m.stopLocked(id)
	}
}

// readLogTail returns the last logTailBytes of the tunnel's log artifact for
// start-failure diagnostics.
func readLogTail(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("could not read log: %v", err)
	}
	if len(data) > logTailBytes {
		data = data[len(data)-logTailBytes:]
	}
	return string(data)
}
