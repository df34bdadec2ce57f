package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/iam/pkg/auth"
	"github.com/platinummonkey/iam/pkg/observability"
)

// KeyWatcher reloads the verification key set when its files change or on
// a cron schedule. A failed reload keeps the previous set. A key-set file
// that lists no keys publishes an empty set.
type KeyWatcher struct {
	cfg     JWTConfig
	ring    *auth.KeyRing
	logger  *observability.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cron    *cron.Cron
	watched map[string]bool
	done    chan struct{}
}

// NewKeyWatcher creates a watcher that republishes into ring. metrics may be nil.
func NewKeyWatcher(cfg JWTConfig, ring *auth.KeyRing, logger *observability.Logger, metrics *observability.Metrics) *KeyWatcher {
	return &KeyWatcher{
		cfg:     cfg,
		ring:    ring,
		logger:  logger.WithField("component", "key_watcher"),
		metrics: metrics,
	}
}

// Reload reads the key set and swaps it into the ring
func (w *KeyWatcher) Reload() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	set, err := w.cfg.LoadVerificationKeys()
	if err != nil {
		w.observe("failure", nil)
		w.logger.WithError(err).Warn("Verification key reload failed, keeping previous key set")
		return fmt.Errorf("failed to reload verification keys: %w", err)
	}

	w.ring.Replace(set)
	w.observe("success", set)
	if set.Len() == 0 {
		w.logger.Warn("Verification key set is now empty, every token will be rejected")
		return nil
	}
	w.logger.WithField("labels", set.Labels()).Info("Verification keys reloaded")
	return nil
}

func (w *KeyWatcher) observe(outcome string, set *auth.KeySet) {
	if w.metrics == nil {
		return
	}
	w.metrics.KeyReloadsTotal.WithLabelValues(outcome).Inc()
	if set != nil {
		w.metrics.VerificationKeys.Set(float64(set.Len()))
	}
}

// Start begins watching. It returns once the watches are installed; events
// are handled in the background until ctx is cancelled or Stop is called.
func (w *KeyWatcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch directories so atomic renames (e.g. Kubernetes secret updates)
	// are seen.
	watched := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, p := range w.cfg.watchPaths() {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	var scheduler *cron.Cron
	if w.cfg.ReloadSchedule != "" {
		scheduler = cron.New()
		if _, err := scheduler.AddFunc(w.cfg.ReloadSchedule, func() {
			defer observability.RecoverPanic(w.logger, "key reload schedule")
			_ = w.Reload()
		}); err != nil {
			fw.Close()
			return fmt.Errorf("invalid key reload schedule %q: %w", w.cfg.ReloadSchedule, err)
		}
		scheduler.Start()
	}

	w.mu.Lock()
	w.watcher = fw
	w.cron = scheduler
	w.watched = watched
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.run(ctx, fw, w.done)
	return nil
}

func (w *KeyWatcher) run(ctx context.Context, fw *fsnotify.Watcher, done chan struct{}) {
	defer observability.RecoverPanic(w.logger, "key watcher")

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if !w.isWatched(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.logger.WithField("file", ev.Name).Debug("Verification key file changed")
			_ = w.Reload()
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("Key file watcher error")
		}
	}
}

func (w *KeyWatcher) isWatched(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watched[abs]
}

// Stop halts file watching and the reload schedule
func (w *KeyWatcher) Stop() error {
	w.mu.Lock()
	fw, scheduler, done := w.watcher, w.cron, w.done
	w.watcher, w.cron, w.done = nil, nil, nil
	w.mu.Unlock()

	if done != nil {
		close(done)
	}
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	if fw != nil {
		return fw.Close()
	}
	return nil
}
