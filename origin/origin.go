// Package origin decides whether inbound traffic comes from a trusted context.
package origin

import (
	"regexp"
	"strings"
	"sync"
)

// entryPattern is the shape every allow-list entry must have: https scheme, a host whose first
// label may be the "*" wildcard, and an optional port. No path, query or fragment.
var entryPattern = regexp.MustCompile(
	`^https://(\*\.)?[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?)*(:[0-9]{1,5})?$`)

// Validator is the gate every inbound envelope must pass.
type Validator struct {
	hostOrigin string

	mu      sync.RWMutex
	origins []string
	known   map[string]struct{}
	matcher *regexp.Regexp
}

// New creates validator accepting hostOrigin implicitly.
func New(hostOrigin string) *Validator {
	return &Validator{
		hostOrigin: strings.TrimSuffix(hostOrigin, "/"),
		known:      map[string]struct{}{},
	}
}

// Add merges origins into the allow-list.
//
// Malformed entries are dropped. The matcher is recompiled only if the list changed.
func (v *Validator) Add(origins ...string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	changed := false
	for _, o := range origins {
		o = strings.TrimSuffix(strings.TrimSpace(o), "/")
		if !entryPattern.MatchString(o) {
			continue
		}
		o = strings.ToLower(o)
		if _, exists := v.known[o]; exists {
			continue
		}
		v.known[o] = struct{}{}
		v.origins = append(v.origins, o)
		changed = true
	}

	if changed {
		v.matcher = compile(v.origins)
	}
}

// Origins returns the allow-list in insertion order.
func (v *Validator) Origins() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return append([]string(nil), v.origins...)
}

// IsValid reports whether traffic from origin may be processed.
func (v *Validator) IsValid(origin string) bool {
	if origin == "" {
		return false
	}
	if v.hostOrigin != "" && strings.EqualFold(origin, v.hostOrigin) {
		return true
	}

	v.mu.RLock()
	matcher := v.matcher
	v.mu.RUnlock()

	return matcher != nil && matcher.MatchString(strings.ToLower(origin))
}

// Reset drops the allow-list.
func (v *Validator) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.origins = nil
	v.known = map[string]struct{}{}
	v.matcher = nil
}

func compile(origins []string) *regexp.Regexp {
	alternatives := make([]string, 0, len(origins))
	for _, o := range origins {
		quoted := regexp.QuoteMeta(o)
		// Wildcard covers exactly one DNS label.
		quoted = strings.Replace(quoted, `https://\*\.`, `https://[a-z0-9-]+\.`, 1)
		alternatives = append(alternatives, quoted)
	}
	return regexp.MustCompile(`^(?:` + strings.Join(alternatives, "|") + `)$`)
}
