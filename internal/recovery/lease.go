package recovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Lease is a single-flight file lock held for the lifetime of one race or
// merge, so two Hydra invocations never operate on the same repository at
// once. It also heartbeats metadata (which run, which PID, when it was last
// renewed) to the lock file so a competing invocation can report who's
// holding it instead of just "busy".
type Lease struct {
	path string
	lock *flock.Flock
	ttl  time.Duration

	mu       sync.Mutex
	meta     leaseMetadata
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

type leaseMetadata struct {
	RunID      string `json:"run_id"`
	PID        int    `json:"pid"`
	Host       string `json:"host"`
	RepoRoot   string `json:"repo_root"`
	AcquiredAt string `json:"acquired_at"`
	RenewedAt  string `json:"renewed_at"`
	ExpiresAt  string `json:"expires_at"`
}

// AcquireLease tries to take the lease file at path, failing with
// ErrLeaseHeld (wrapping a hint about the current holder) if another
// process already holds it. ttl governs both the advertised expiry and
// the heartbeat interval; ttl <= 0 defaults to two minutes.
func AcquireLease(path, repoRoot, runID string, ttl time.Duration) (*Lease, error) {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lease directory: %w", err)
	}

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lease lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLeaseHeld, readLeaseHolderHint(path))
	}

	host, _ := os.Hostname()
	now := time.Now().UTC()
	lease := &Lease{
		path:   path,
		lock:   lock,
		ttl:    ttl,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		meta: leaseMetadata{
			RunID:      runID,
			PID:        os.Getpid(),
			Host:       host,
			RepoRoot:   repoRoot,
			AcquiredAt: now.Format(time.RFC3339),
			RenewedAt:  now.Format(time.RFC3339),
			ExpiresAt:  now.Add(ttl).Format(time.RFC3339),
		},
	}
	if err := lease.writeMetadata(now); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	lease.startHeartbeat()
	return lease, nil
}

// Path returns the lease file's path.
func (l *Lease) Path() string { return l.path }

// Release stops the heartbeat and unlocks the lease file. Safe to call
// once; a second call is a no-op beyond the already-stopped heartbeat.
func (l *Lease) Release() error {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		<-l.doneCh
	})
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("unlock lease: %w", err)
	}
	return nil
}

func (l *Lease) startHeartbeat() {
	interval := l.ttl / 2
	if interval < 15*time.Second {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer close(l.doneCh)
		defer ticker.Stop()
		for {
			select {
			case <-l.stopCh:
				return
			case now := <-ticker.C:
				if err := l.writeMetadata(now.UTC()); err != nil {
					// Best-effort: a missed heartbeat doesn't invalidate the
					// OS-level lock itself, only the advertised expiry hint.
					continue
				}
			}
		}
	}()
}

func (l *Lease) writeMetadata(now time.Time) error {
	l.mu.Lock()
	l.meta.RenewedAt = now.Format(time.RFC3339)
	l.meta.ExpiresAt = now.Add(l.ttl).Format(time.RFC3339)
	meta := l.meta
	l.mu.Unlock()

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal lease metadata: %w", err)
	}
	data = append(data, '\n')
	return os.WriteFile(l.path, data, 0o644)
}

func readLeaseHolderHint(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("lock=%s", path)
	}
	var meta leaseMetadata
	if err := json.Unmarshal(data, &meta); err != nil || meta.RunID == "" {
		return fmt.Sprintf("lock=%s", path)
	}
	return fmt.Sprintf("run=%s pid=%d host=%s renewed_at=%s", meta.RunID, meta.PID, meta.Host, meta.RenewedAt)
}
