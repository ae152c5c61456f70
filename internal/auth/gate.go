package auth

import (
	"errors"
	"log/slog"
)

// ErrBlacklisted indicates the client's address is on the blacklist.
var ErrBlacklisted = errors.New("host blacklisted")

// Rejection details returned to clients. Fixed strings so callers learn
// nothing about the verification internals.
const (
	DetailExpired     = "Expired Token"
	DetailInvalid     = "Invalid Token"
	DetailBlacklisted = "Blacklisted Host"
)

// Gate decides whether a request may proceed. The blacklist check always
// runs first, so a banned host is refused even with a valid token. A token
// that fails verification for any reason other than expiry gets the client
// address banned permanently.
type Gate struct {
	blacklist *Blacklist
	verifier  *Verifier
	logger    *slog.Logger
}

// NewGate creates a Gate.
func NewGate(blacklist *Blacklist, verifier *Verifier, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{blacklist: blacklist, verifier: verifier, logger: logger}
}

// Verify checks ip against the blacklist and then validates token. On an
// invalid (not merely expired) token the ip is added to the blacklist before
// the error is returned.
func (g *Gate) Verify(ip, token string) error {
	if g.blacklist.Contains(ip) {
		g.logger.Warn("refused blacklisted host", "ip", ip)
		return ErrBlacklisted
	}

	err := g.verifier.Verify(token)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTokenExpired) {
		g.logger.Info("refused expired token", "ip", ip)
		return err
	}

	g.logger.Warn("invalid token, banning host", "ip", ip, "error", err)
	if addErr := g.blacklist.Add(ip); addErr != nil {
		g.logger.Error("blacklisting host", "ip", ip, "error", addErr)
	}
	return err
}

// Detail maps a gate error to the client-facing rejection string.
func Detail(err error) string {
	switch {
	case errors.Is(err, ErrBlacklisted):
		return DetailBlacklisted
	case errors.Is(err, ErrTokenExpired):
		return DetailExpired
	default:
		return DetailInvalid
	}
}
