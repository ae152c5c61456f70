// Package auth implements the credential gate: a persisted IP blacklist
// checked before anything else, and signed access-token verification that
// feeds the blacklist on structurally invalid tokens.
package auth

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

// Blacklist is an append-only set of client IPs persisted as a flat file,
// one address per line.
//
// Contains re-reads the file on every check so manual edits and writes from
// other processes take effect without a restart. Add serializes writers with
// an in-process mutex plus a cross-process file lock, and re-checks current
// contents before appending so concurrent bad-token requests never produce
// duplicate lines.
type Blacklist struct {
	mu     sync.Mutex
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

// NewBlacklist creates a Blacklist backed by the file at path. The file is
// created lazily on first Add.
func NewBlacklist(path string, logger *slog.Logger) *Blacklist {
	if logger == nil {
		logger = slog.Default()
	}
	return &Blacklist{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger,
	}
}

// Contains reports whether ip is blacklisted. A missing file means an empty
// blacklist. Read errors fail closed and are logged.
func (b *Blacklist) Contains(ip string) bool {
	set, err := b.load()
	if err != nil {
		b.logger.Error("reading blacklist, failing closed", "error", err)
		return true
	}
	_, ok := set[ip]
	return ok
}

// Add appends ip to the blacklist file. Duplicate adds are no-ops.
func (b *Blacklist) Add(ip string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.lock.Lock(); err != nil {
		return fmt.Errorf("locking blacklist file: %w", err)
	}
	defer func() {
		if err := b.lock.Unlock(); err != nil {
			b.logger.Warn("unlocking blacklist file", "error", err)
		}
	}()

	// Re-check under the lock: another process may have added the IP
	// between our check and this write.
	set, err := b.load()
	if err != nil {
		return err
	}
	if _, ok := set[ip]; ok {
		b.logger.Info("ip already blacklisted", "ip", ip)
		return nil
	}

	f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening blacklist file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintln(f, ip); err != nil {
		return fmt.Errorf("appending to blacklist: %w", err)
	}

	b.logger.Info("ip added to blacklist", "ip", ip)
	return nil
}

// load reads the whole file into a set. Missing file = empty set.
func (b *Blacklist) load() (map[string]struct{}, error) {
	set := make(map[string]struct{})

	f, err := os.Open(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return set, nil
		}
		return nil, fmt.Errorf("opening blacklist file: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			set[line] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning blacklist file: %w", err)
	}
	return set, nil
}
