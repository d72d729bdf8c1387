// Package hostname maps raw page URLs to the canonical key that time and
// visits are aggregated under.
package hostname

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Mode selects how a host is folded to its registrable domain.
type Mode string

const (
	// ModeHeuristic folds with the co/com second-level rule.
	ModeHeuristic Mode = "heuristic"
	// ModePublicSuffix folds with the public suffix list.
	ModePublicSuffix Mode = "publicsuffix"
)

// ParseMode validates a configured mode string. Empty means heuristic.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeHeuristic:
		return ModeHeuristic, nil
	case ModePublicSuffix:
		return ModePublicSuffix, nil
	default:
		return "", fmt.Errorf("unknown hostname mode %q (use heuristic or publicsuffix)", s)
	}
}

// Normalizer canonicalizes URLs according to its Mode.
type Normalizer struct {
	Mode Mode
}

// New returns a Normalizer for the given mode.
func New(mode Mode) *Normalizer {
	return &Normalizer{Mode: mode}
}

// IsTrackable reports whether a URL should be tracked at all: it must parse
// and use http or https with a non-empty host. Browser-internal pages,
// file URLs and malformed strings are not tracked.
func IsTrackable(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Hostname() != ""
}

// Canonical folds a URL with the heuristic rule. See Normalizer.Canonical.
func Canonical(rawURL string) string {
	return New(ModeHeuristic).Canonical(rawURL)
}

// Canonical returns the tracked key for a URL. If the URL cannot be parsed
// or has no host, the raw input is returned unchanged so callers always get
// some key.
func (n *Normalizer) Canonical(rawURL string) string {
	host, ok := extractHost(rawURL)
	if !ok {
		return rawURL
	}
	if net.ParseIP(host) != nil {
		return host
	}

	if n != nil && n.Mode == ModePublicSuffix {
		if folded, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
			return folded
		}
	}
	return foldHeuristic(host)
}

func extractHost(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", false
	}
	return host, true
}

// foldHeuristic keeps the last two labels, or the last three when the
// second-to-last label is "co" or "com" (example.co.uk, example.com.cn).
// It misfolds suffixes like .org.uk; ModePublicSuffix handles those.
func foldHeuristic(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	if sld := labels[len(labels)-2]; sld == "co" || sld == "com" {
		return strings.Join(labels[len(labels)-3:], ".")
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
