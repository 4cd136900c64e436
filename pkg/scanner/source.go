package scanner

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tracelens/trace-analyzer/pkg/logging"
	"github.com/tracelens/trace-analyzer/pkg/model"
)

// MatchSource looks up the known vulnerabilities of one dependency. It is
// the boundary to the external CVE matcher.
type MatchSource interface {
	Matches(ctx context.Context, dep model.RuntimeDependency) ([]model.VulnerabilityMatch, error)
}

// StaticSource serves a fixed list of matches, keyed by package name.
// Versions are not compared: the list is assumed to be matched already.
type StaticSource struct {
	byPackage map[string][]model.VulnerabilityMatch
}

// NewStaticSource indexes matches by lower-cased package name
func NewStaticSource(matches []model.VulnerabilityMatch) *StaticSource {
	s := &StaticSource{byPackage: make(map[string][]model.VulnerabilityMatch)}
	for _, m := range matches {
		key := strings.ToLower(m.PackageName)
		s.byPackage[key] = append(s.byPackage[key], m)
	}
	return s
}

// Matches returns the matches recorded for dep's package
func (s *StaticSource) Matches(_ context.Context, dep model.RuntimeDependency) ([]model.VulnerabilityMatch, error) {
	found := s.byPackage[strings.ToLower(dep.Name)]
	return append([]model.VulnerabilityMatch(nil), found...), nil
}

// Packages lists every package with at least one match, as dependencies
func (s *StaticSource) Packages() []model.RuntimeDependency {
	deps := make([]model.RuntimeDependency, 0, len(s.byPackage))
	seen := make(map[string]bool)
	for _, matches := range s.byPackage {
		for _, m := range matches {
			if !seen[m.PackageName] {
				seen[m.PackageName] = true
				deps = append(deps, model.RuntimeDependency{Name: m.PackageName})
			}
		}
	}
	sortDependencies(deps)
	return deps
}

// CachingSource memoizes another source per name@version for a fixed time.
// Errors are not cached.
type CachingSource struct {
	next  MatchSource
	cache *expirable.LRU[string, []model.VulnerabilityMatch]
}

// NewCachingSource wraps next with an LRU of the given size whose entries
// expire after ttl
func NewCachingSource(next MatchSource, size int, ttl time.Duration) *CachingSource {
	return &CachingSource{
		next:  next,
		cache: expirable.NewLRU[string, []model.VulnerabilityMatch](size, nil, ttl),
	}
}

// Matches serves from the cache or asks the wrapped source
func (c *CachingSource) Matches(ctx context.Context, dep model.RuntimeDependency) ([]model.VulnerabilityMatch, error) {
	key := strings.ToLower(dep.Name) + "@" + dep.Version
	if cached, ok := c.cache.Get(key); ok {
		logging.TraceContext(ctx, "Match cache hit", "dependency", key)
		return append([]model.VulnerabilityMatch(nil), cached...), nil
	}

	matches, err := c.next.Matches(ctx, dep)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, append([]model.VulnerabilityMatch(nil), matches...))
	return matches, nil
}

// Len returns the number of cached dependencies
func (c *CachingSource) Len() int {
	return c.cache.Len()
}

// Purge empties the cache
func (c *CachingSource) Purge() {
	c.cache.Purge()
}
