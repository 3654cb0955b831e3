package assetcache

import (
	"fmt"
	"net/url"
)

// resolveManifest turns manifest entries into cache keys, keeping the first
// occurrence of duplicates.
func (m *Manager) resolveManifest(entries []string) ([]string, error) {
	out := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		u, err := url.Parse(e)
		if err != nil {
			return nil, fmt.Errorf("assetcache: manifest entry %q: %w", e, err)
		}
		if !u.IsAbs() && m.origin == nil {
			return nil, fmt.Errorf("assetcache: manifest entry %q is relative and no origin is set", e)
		}
		k := m.cacheKey(u)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out, nil
}

// cacheKey is the absolute URL without its fragment. The query is kept.
func (m *Manager) cacheKey(u *url.URL) string {
	if u == nil {
		return ""
	}
	if !u.IsAbs() && m.origin != nil {
		u = m.origin.ResolveReference(u)
	}
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}
