package auth

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zk-jackie/campusqa/internal/log"
)

const testSecret = "unit-test-secret"

func newTestGate(t *testing.T) (*Gate, *Verifier, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blacklist.txt")
	v := NewVerifier(testSecret, "HS256")
	g := NewGate(NewBlacklist(path, log.NewNop()), v, log.NewNop())
	return g, v, path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		t.Fatalf("reading blacklist: %v", err)
	}
	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func TestVerifyAcceptsValidToken(t *testing.T) {
	g, v, path := newTestGate(t)

	tok, err := v.Sign("student", time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := g.Verify("10.0.0.1", tok); err != nil {
		t.Errorf("Verify: %v", err)
	}
	if lines := readLines(t, path); len(lines) != 0 {
		t.Errorf("blacklist has %d entries, want 0", len(lines))
	}
}

func TestMalformedTokenBansHost(t *testing.T) {
	g, _, path := newTestGate(t)

	err := g.Verify("10.0.0.2", "not-a-token")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Verify error = %v, want ErrTokenInvalid", err)
	}
	if Detail(err) != DetailInvalid {
		t.Errorf("Detail = %q, want %q", Detail(err), DetailInvalid)
	}

	lines := readLines(t, path)
	if len(lines) != 1 || lines[0] != "10.0.0.2" {
		t.Errorf("blacklist = %v, want exactly [10.0.0.2]", lines)
	}
}

func TestBadSignatureBansHost(t *testing.T) {
	g, _, path := newTestGate(t)

	other := NewVerifier("a-different-secret", "HS256")
	tok, err := other.Sign("intruder", time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if err := g.Verify("10.0.0.3", tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Verify error = %v, want ErrTokenInvalid", err)
	}
	if lines := readLines(t, path); len(lines) != 1 {
		t.Errorf("blacklist has %d entries, want 1", len(lines))
	}
}

func TestExpiredTokenDoesNotBan(t *testing.T) {
	g, v, path := newTestGate(t)

	tok, err := v.Sign("student", -time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	err = g.Verify("10.0.0.4", tok)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Verify error = %v, want ErrTokenExpired", err)
	}
	if Detail(err) != DetailExpired {
		t.Errorf("Detail = %q, want %q", Detail(err), DetailExpired)
	}
	if lines := readLines(t, path); len(lines) != 0 {
		t.Errorf("expired token must not blacklist, got %v", lines)
	}

	// The host must still be able to retry with a fresh token.
	fresh, err := v.Sign("student", time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := g.Verify("10.0.0.4", fresh); err != nil {
		t.Errorf("fresh token after expiry rejected: %v", err)
	}
}

func TestBlacklistedHostRefusedDespiteValidToken(t *testing.T) {
	g, v, _ := newTestGate(t)

	// First request with garbage gets the host banned.
	if err := g.Verify("10.0.0.5", "garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("setup Verify error = %v, want ErrTokenInvalid", err)
	}

	tok, err := v.Sign("student", time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	err = g.Verify("10.0.0.5", tok)
	if !errors.Is(err, ErrBlacklisted) {
		t.Fatalf("Verify error = %v, want ErrBlacklisted", err)
	}
	if Detail(err) != DetailBlacklisted {
		t.Errorf("Detail = %q, want %q", Detail(err), DetailBlacklisted)
	}
}

func TestConcurrentBadTokensProduceOneEntry(t *testing.T) {
	g, _, path := newTestGate(t)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Verify("10.0.0.6", "garbage")
		}()
	}
	wg.Wait()

	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Errorf("blacklist = %v, want a single entry for 10.0.0.6", lines)
	}
}

func TestBlacklistReloadsFromDisk(t *testing.T) {
	g, v, path := newTestGate(t)

	tok, err := v.Sign("student", time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := g.Verify("10.0.0.7", tok); err != nil {
		t.Fatalf("Verify before edit: %v", err)
	}

	// Edit the file out of band; the next check must see it.
	if err := os.WriteFile(path, []byte("10.0.0.7\n"), 0o600); err != nil {
		t.Fatalf("writing blacklist: %v", err)
	}
	if err := g.Verify("10.0.0.7", tok); !errors.Is(err, ErrBlacklisted) {
		t.Errorf("Verify after edit = %v, want ErrBlacklisted", err)
	}
}

func TestVerifierRejectsAlgorithmConfusion(t *testing.T) {
	v := NewVerifier(testSecret, "HS256")
	other := NewVerifier(testSecret, "HS512")

	tok, err := other.Sign("student", time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := v.Verify(tok); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify error = %v, want ErrTokenInvalid", err)
	}
}
