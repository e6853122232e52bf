package parser

import (
	"fmt"
	"regexp"
	"sync"
)

// HeaderImagePattern pulls a quoted http(s) URL out of an inline style,
// e.g. background-image: url("https://...").
const HeaderImagePattern = `"\s*(https?://[^\s"]+)\s*"`

// RegexCache compiles patterns once and reuses them.
type RegexCache struct {
	mu    sync.RWMutex
	cache map[string]*regexp.Regexp
}

// NewRegexCache creates an empty cache.
func NewRegexCache() *RegexCache {
	return &RegexCache{cache: make(map[string]*regexp.Regexp)}
}

// FirstGroup returns the first capture group of the first match of
// pattern in s, or the whole match if the pattern has no groups.
func (c *RegexCache) FirstGroup(pattern, s string) (string, bool, error) {
	re, err := c.getOrCompile(pattern)
	if err != nil {
		return "", false, err
	}
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false, nil
	}
	if len(m) > 1 {
		return m[1], true, nil
	}
	return m[0], true, nil
}

func (c *RegexCache) getOrCompile(pattern string) (*regexp.Regexp, error) {
	c.mu.RLock()
	re, ok := c.cache[pattern]
	c.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile regex %q: %w", pattern, err)
	}

	c.mu.Lock()
	c.cache[pattern] = re
	c.mu.Unlock()
	return re, nil
}
