package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Allowlist is the set of filesystem roots the engine may mutate. Containment
// checks canonicalize candidate paths first: symlinks in the deepest existing
// ancestor are resolved, the non-existing remainder is rejoined, and the
// result is cleaned before a separator-aware prefix comparison. Resolution
// failures are treated as escapes, never as containment.
type Allowlist struct {
	roots []string
}

// New builds an allowlist from the workspace root plus any extra writable
// roots from configuration. Roots are canonicalized once at construction.
func New(workspace string, extra ...string) (*Allowlist, error) {
	workspace = strings.TrimSpace(workspace)
	if workspace == "" {
		return nil, fmt.Errorf("workspace root is required")
	}

	roots := make([]string, 0, 1+len(extra))
	for _, raw := range append([]string{workspace}, extra...) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		resolved, err := Canonicalize(raw)
		if err != nil {
			return nil, fmt.Errorf("resolve allowlist root %q: %w", raw, err)
		}
		roots = append(roots, resolved)
	}
	return &Allowlist{roots: roots}, nil
}

// Roots returns the canonicalized writable roots.
func (a *Allowlist) Roots() []string {
	out := make([]string, len(a.roots))
	copy(out, a.roots)
	return out
}

// Primary returns the first root (the workspace).
func (a *Allowlist) Primary() string {
	if len(a.roots) == 0 {
		return ""
	}
	return a.roots[0]
}

// Resolve canonicalizes path. Relative paths are resolved against the
// primary root, not the process working directory, so containment does not
// depend on where the binary was launched.
func (a *Allowlist) Resolve(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(a.Primary(), path)
	}
	return Canonicalize(path)
}

// Contains reports whether path canonicalizes to a location inside one of
// the allowlist roots. Any resolution failure counts as outside.
func (a *Allowlist) Contains(path string) bool {
	resolved, err := a.Resolve(path)
	if err != nil {
		return false
	}
	for _, root := range a.roots {
		if within(resolved, root) {
			return true
		}
	}
	return false
}

// ContainsAll reports whether every path is inside the allowlist. An empty
// slice is not contained: an action that declares no targets has nothing to
// write and should not reach a containment check.
func (a *Allowlist) ContainsAll(paths []string) bool {
	if len(paths) == 0 {
		return false
	}
	for _, p := range paths {
		if !a.Contains(p) {
			return false
		}
	}
	return true
}

// Canonicalize makes path absolute, resolves symlinks in its deepest existing
// ancestor, and cleans the result. The target itself may not exist yet.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolutize path: %w", err)
	}
	abs = filepath.Clean(abs)

	// Walk up until a component exists, then resolve symlinks there and
	// reattach the rest.
	existing := abs
	var tail []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("stat %q: %w", existing, err)
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		tail = append([]string{filepath.Base(existing)}, tail...)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", fmt.Errorf("resolve symlinks for %q: %w", existing, err)
	}
	if len(tail) > 0 {
		resolved = filepath.Join(append([]string{resolved}, tail...)...)
	}
	return filepath.Clean(resolved), nil
}

func within(path, root string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
