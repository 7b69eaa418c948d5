// Package engine owns the single shared scanner process. One scanner
// serves every queue member: its signals are parsed once and fanned
// out, rather than each account running a private copy.
package engine

import (
	"fmt"
	"io"
	"log"
	"os/exec"
	"path/filepath"
	"sync"

	"luxe_sniper/internal/models"
	"luxe_sniper/internal/parser"
)

// EventSubmitter receives parsed events in emission order. Satisfied
// by the dispatcher.
type EventSubmitter interface {
	Submit(ev models.EngineEvent)
}

// Manager starts, watches, and stops the scanner script.
type Manager struct {
	python     string
	scriptsDir string
	submitter  EventSubmitter
	onCrash    func() // Called when the process dies without Stop

	mu       sync.Mutex
	cmd      *exec.Cmd
	stopping bool
}

func NewManager(python, scriptsDir string, submitter EventSubmitter) *Manager {
	return &Manager{
		python:     python,
		scriptsDir: scriptsDir,
		submitter:  submitter,
	}
}

// OnCrash registers the unexpected-exit hook. The owner uses it to
// clear the queue and notify subscribers that scanning stopped.
func (m *Manager) OnCrash(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCrash = fn
}

// Running reports whether a scanner process is alive.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cmd != nil
}

// Start launches the scanner with the initiating account's settings.
// Starting while already running is a no-op: later subscribers join
// the existing process's fan-out.
func (m *Manager) Start(credential, targetMultiplier, buyAmount string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cmd != nil {
		return nil
	}

	cmd := exec.Command(m.python,
		filepath.Join(m.scriptsDir, "bot.py"), credential, targetMultiplier, buyAmount)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("scanner pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("scanner start: %w", err)
	}

	m.cmd = cmd
	m.stopping = false
	log.Printf("scanner: started (pid %d)", cmd.Process.Pid)

	go m.drain(cmd, stdout)
	return nil
}

// drain pumps scanner output through the parser into the dispatcher
// until the process exits. Runs once per process lifetime.
func (m *Manager) drain(cmd *exec.Cmd, stdout io.Reader) {
	p := parser.New()
	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			for _, ev := range p.Feed(string(buf[:n])) {
				m.submitter.Submit(ev)
			}
		}
		if err != nil {
			break
		}
	}
	p.Flush()

	err := cmd.Wait()

	m.mu.Lock()
	wasStopping := m.stopping
	m.cmd = nil
	crash := m.onCrash
	m.mu.Unlock()

	if wasStopping {
		log.Printf("scanner: stopped")
		return
	}
	log.Printf("scanner: exited unexpectedly: %v", err)
	if crash != nil {
		crash()
	}
}

// Stop kills the scanner. Subsequent unexpected-exit handling is
// suppressed; callers have already decided the queue's fate.
func (m *Manager) Stop() {
	m.mu.Lock()
	cmd := m.cmd
	if cmd != nil {
		m.stopping = true
	}
	m.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil {
			log.Printf("scanner: kill failed: %v", err)
		}
	}
}
