package music

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// MPVEngine implements Engine by running one mpv process per loaded file
// and controlling it over mpv's JSON IPC socket.
type MPVEngine struct {
	binary     string
	socketPath string
	logger     zerolog.Logger

	mu     sync.Mutex
	volume float64
	proc   *mpvProcess
}

// mpvProcess is a single running mpv instance
type mpvProcess struct {
	cmd     *exec.Cmd
	ipc     *ipcClient
	done    chan struct{}
	stopped atomic.Bool // set before a deliberate kill so onFinish is suppressed
}

// running reports whether the process has not exited yet
func (p *mpvProcess) running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// NewMPVEngine creates an engine that runs the given mpv binary.
// An empty binary defaults to "mpv" on PATH.
func NewMPVEngine(binary string, logger zerolog.Logger) *MPVEngine {
	if binary == "" {
		binary = "mpv"
	}
	return &MPVEngine{
		binary:     binary,
		socketPath: filepath.Join(os.TempDir(), fmt.Sprintf("luna-mpv-%d.sock", os.Getpid())),
		logger:     logger.With().Str("component", "mpv").Logger(),
		volume:     1.0,
	}
}

// LoadAndPlay starts mpv on path after stopping any running instance
func (e *MPVEngine) LoadAndPlay(ctx context.Context, path string, onFinish func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to open audio file: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("audio file %s is empty", path)
	}

	_ = os.Remove(e.socketPath)

	cmd := exec.Command(e.binary,
		"--no-video",
		"--no-terminal",
		"--idle=no",
		"--input-ipc-server="+e.socketPath,
		"--volume="+strconv.Itoa(volumePercent(e.volume)),
		path,
	)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start mpv: %w", err)
	}

	p := &mpvProcess{cmd: cmd, done: make(chan struct{})}
	go e.wait(p, path, onFinish)

	wait := 3 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		wait = time.Until(deadline)
	}
	ipc, err := dialIPC(e.socketPath, wait)
	if err != nil {
		p.stopped.Store(true)
		_ = cmd.Process.Kill()
		<-p.done
		return fmt.Errorf("failed to connect to mpv: %w", err)
	}
	p.ipc = ipc
	e.proc = p

	e.logger.Debug().Str("path", path).Int("pid", cmd.Process.Pid).Msg("mpv started")
	return nil
}

// wait reaps the process and reports natural completion
func (e *MPVEngine) wait(p *mpvProcess, path string, onFinish func()) {
	err := p.cmd.Wait()
	close(p.done)

	if p.stopped.Load() {
		return
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			e.logger.Warn().Int("exit_code", exitErr.ExitCode()).Str("path", path).Msg("mpv exited with error")
		}
	}
	if onFinish != nil {
		onFinish()
	}
}

// Pause pauses playback
func (e *MPVEngine) Pause(ctx context.Context) error {
	return e.setProperty("pause", true)
}

// Resume resumes playback
func (e *MPVEngine) Resume(ctx context.Context) error {
	return e.setProperty("pause", false)
}

// Stop kills the running mpv instance and waits for it to exit
func (e *MPVEngine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()
	return nil
}

// stopLocked must be called with e.mu held
func (e *MPVEngine) stopLocked() {
	p := e.proc
	if p == nil {
		return
	}
	e.proc = nil
	p.stopped.Store(true)

	if p.running() && p.ipc != nil {
		_ = p.ipc.call("quit")
	}
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		_ = p.cmd.Process.Kill()
		<-p.done
	}
	if p.ipc != nil {
		_ = p.ipc.Close()
	}
}

// SetVolume stores the volume and applies it to running audio
func (e *MPVEngine) SetVolume(ctx context.Context, volume float64) error {
	e.mu.Lock()
	e.volume = volume
	busy := e.proc != nil && e.proc.running()
	e.mu.Unlock()

	if !busy {
		return nil
	}
	return e.setProperty("volume", volumePercent(volume))
}

// IsBusy reports whether mpv is running
func (e *MPVEngine) IsBusy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.proc != nil && e.proc.running()
}

func (e *MPVEngine) setProperty(name string, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.proc == nil || e.proc.ipc == nil || !e.proc.running() {
		return fmt.Errorf("mpv is not running")
	}
	if err := e.proc.ipc.call("set_property", name, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", name, err)
	}
	return nil
}

// volumePercent converts a [0,1] volume to mpv's 0-100 scale
func volumePercent(v float64) int {
	return int(math.Round(v * 100))
}
