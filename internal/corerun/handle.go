package corerun

import (
	"os/exec"
	"syscall"
	"time"
)

// Handle wraps one child server process. Liveness is derived from the real
// process state (the reaper goroutine observing Wait), never from a stored
// flag that can go stale.
type Handle struct {
	cmd  *exec.Cmd
	done chan struct{} // closed once the child has been reaped
}

// startHandle launches cmd in its own session so that panel shutdown does not
// implicitly signal the child, and begins reaping it in the background.
func startHandle(cmd *exec.Cmd) (*Handle, error) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	h := &Handle{cmd: cmd, done: make(chan struct{})}
	go func() {
		cmd.Wait()
		close(h.done)
	}()
	return h, nil
}

func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Alive reports whether the child is still running.
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// ExitCode returns the child's exit code, or -1 if it has not exited.
func (h *Handle) ExitCode() int {
	select {
	case <-h.done:
		if h.cmd.ProcessState == nil {
			return -1
		}
		return h.cmd.ProcessState.ExitCode()
	default:
		return -1
	}
}

// Terminate requests a graceful stop and escalates to SIGKILL if the child
// has not exited within grace. It always waits for the child to be reaped
// and never fails: signalling errors just mean the process is already gone.
func (h *Handle) Terminate(grace time.Duration) {
	if !h.Alive() {
		return
	}

	_ = h.cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-h.done:
		return
	case <-time.After(grace):
	}

	_ = h.cmd.Process.Kill()
	<-h.done
}
