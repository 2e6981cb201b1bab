// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const lockSuffix = ".lock"

// lockGrace is how long an empty or unreadable lock is taken to be one whose
// owner is still writing its PID.
const lockGrace = 2 * time.Second

// FileBackend turns a directory into a hotkey surface. The desktop
// environment binds the real key to `summon toggle` (or simply touches the
// trigger file), and the running launcher sees the change via fsnotify.
//
// For a combo like ctrl+space the directory holds:
//
//	ctrl+space.lock   PID of the owning launcher
//	ctrl+space        trigger; any create, write or touch activates it
//
// A lock whose PID is still alive in another process is a conflict. Locks left
// by dead processes are reclaimed.
type FileBackend struct {
	dir     string
	pid     int
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu     sync.Mutex
	byName map[string]int
	byID   map[int]string

	ch        chan int
	stop      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once
}

// NewFileBackend creates dir if needed and starts watching it.
func NewFileBackend(dir string, logger *slog.Logger) (*FileBackend, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create hotkey dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create hotkey watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch hotkey dir: %w", err)
	}

	b := &FileBackend{
		dir:      dir,
		pid:      os.Getpid(),
		watcher:  watcher,
		logger:   logger,
		byName:   make(map[string]int),
		byID:     make(map[int]string),
		ch:       make(chan int, 16),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	go b.loop()
	return b, nil
}

// Dir returns the watched directory.
func (b *FileBackend) Dir() string {
	return b.dir
}

func (b *FileBackend) Register(id int, c Combo) error {
	name := c.String()

	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case <-b.stop:
		return ErrBackendClosed
	default:
	}
	if _, taken := b.byName[name]; taken {
		return ErrRegistrationConflict
	}

	if err := b.acquire(name); err != nil {
		return err
	}
	// A trigger left over from before we owned the combo must not fire.
	os.Remove(filepath.Join(b.dir, name))

	b.byName[name] = id
	b.byID[id] = name
	return nil
}

// acquire creates the lock file exclusively, reclaiming it once if the
// recorded owner is gone.
func (b *FileBackend) acquire(name string) error {
	path := filepath.Join(b.dir, name+lockSuffix)
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(b.pid))
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(path)
				return fmt.Errorf("write hotkey lock: %w", errors.Join(werr, cerr))
			}
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("create hotkey lock: %w", err)
		}

		owner, ok := readOwner(path)
		switch {
		case ok && owner != b.pid && processAlive(owner):
			return fmt.Errorf("%w (pid %d)", ErrRegistrationConflict, owner)
		case !ok && lockFresh(path):
			return fmt.Errorf("%w (lock being written)", ErrRegistrationConflict)
		}
		b.logger.Info("HOTKEY_LOCK_RECLAIMED", "combo", name, "stale_pid", owner)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale hotkey lock: %w", err)
		}
	}
	return ErrRegistrationConflict
}

func (b *FileBackend) Unregister(id int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	name, ok := b.byID[id]
	if !ok {
		return nil
	}
	delete(b.byID, id)
	delete(b.byName, name)
	return b.release(name)
}

// release removes our lock, leaving one that someone else took over alone.
func (b *FileBackend) release(name string) error {
	path := filepath.Join(b.dir, name+lockSuffix)
	if owner, ok := readOwner(path); ok && owner != b.pid {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove hotkey lock: %w", err)
	}
	os.Remove(filepath.Join(b.dir, name))
	return nil
}

func (b *FileBackend) Activations() <-chan int {
	return b.ch
}

// Close stops watching and releases every lock still held.
func (b *FileBackend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.stop)
		err = b.watcher.Close()
		<-b.loopDone

		b.mu.Lock()
		for id, name := range b.byID {
			b.release(name)
			delete(b.byID, id)
			delete(b.byName, name)
		}
		b.mu.Unlock()
	})
	return err
}

func (b *FileBackend) loop() {
	defer close(b.loopDone)
	defer close(b.ch)

	for {
		select {
		case <-b.stop:
			return

		case ev, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if !(ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Chmod)) {
				continue
			}
			name := filepath.Base(ev.Name)
			if strings.HasSuffix(name, lockSuffix) {
				continue
			}

			b.mu.Lock()
			id, ok := b.byName[name]
			b.mu.Unlock()
			if !ok {
				continue
			}
			select {
			case b.ch <- id:
			case <-b.stop:
				return
			}

		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.logger.Warn("HOTKEY_WATCH_ERROR", "error", err)
		}
	}
}

// lockFresh reports whether lockPath was modified within lockGrace. A lock
// that vanished in the meantime is not fresh.
func lockFresh(lockPath string) bool {
	info, err := os.Stat(lockPath)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < lockGrace
}

func readOwner(lockPath string) (int, bool) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// Trigger activates c in the launcher that owns it under dir. It is what
// `summon toggle` runs.
func Trigger(dir string, c Combo) error {
	name := c.String()
	if _, ok := Owner(dir, c); !ok {
		return fmt.Errorf("%w: %s", ErrNoListener, c.Display())
	}
	stamp := []byte(time.Now().UTC().Format(time.RFC3339Nano))
	if err := os.WriteFile(filepath.Join(dir, name), stamp, 0600); err != nil {
		return fmt.Errorf("write hotkey trigger: %w", err)
	}
	return nil
}

// Owner returns the pid of the live process holding c in dir.
func Owner(dir string, c Combo) (int, bool) {
	pid, ok := readOwner(filepath.Join(dir, c.String()+lockSuffix))
	if !ok || !processAlive(pid) {
		return 0, false
	}
	return pid, true
}
