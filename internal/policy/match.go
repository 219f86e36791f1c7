package policy

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/golang/groupcache/lru"
)

// ErrInvalidPattern is returned when a settings list holds a pattern that
// does not compile.
var ErrInvalidPattern = errors.New("invalid pattern")

// PatternResult is the outcome of compiling one user pattern.
type PatternResult struct {
	Source string
	Err    error
}

// OK reports whether the pattern compiled.
func (r PatternResult) OK() bool {
	return r.Err == nil
}

// MaxCachedPatterns bounds the compiled-pattern cache. Saved lists are far
// smaller; the bound keeps one-off previews from growing a long-running
// server without limit.
const MaxCachedPatterns = 512

// compiled caches valid user patterns by source, least recently used first
// out.
var compiled = struct {
	sync.Mutex
	cache *lru.Cache
}{cache: lru.New(MaxCachedPatterns)}

func compile(src string) (*regexp.Regexp, error) {
	compiled.Lock()
	v, ok := compiled.cache.Get(src)
	compiled.Unlock()
	if ok {
		return v.(*regexp.Regexp), nil
	}

	re, err := regexp.Compile("(?i)" + src)
	if err != nil {
		return nil, err
	}
	compiled.Lock()
	compiled.cache.Add(src, re)
	compiled.Unlock()
	return re, nil
}

// cachedPatterns reports how many compiled patterns are held.
func cachedPatterns() int {
	compiled.Lock()
	defer compiled.Unlock()
	return compiled.cache.Len()
}

// CompilePattern checks a single user pattern.
func CompilePattern(src string) PatternResult {
	if strings.TrimSpace(src) == "" {
		return PatternResult{Source: src, Err: fmt.Errorf("%w: empty pattern", ErrInvalidPattern)}
	}
	if _, err := compile(src); err != nil {
		return PatternResult{Source: src, Err: fmt.Errorf("%w %q: %v", ErrInvalidPattern, src, err)}
	}
	return PatternResult{Source: src}
}

// ValidatePatterns compiles every pattern and returns one result per entry,
// in order.
func ValidatePatterns(patterns []string) []PatternResult {
	results := make([]PatternResult, 0, len(patterns))
	for _, p := range patterns {
		results = append(results, CompilePattern(p))
	}
	return results
}

// JoinErrors joins the errors of every failing result. It returns nil when
// all patterns compiled.
func JoinErrors(results []PatternResult) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}

// MatchesPattern reports whether text matches a single pattern. Matching is
// case-insensitive and an invalid pattern never matches.
func MatchesPattern(text, pattern string) bool {
	if strings.TrimSpace(pattern) == "" {
		return false
	}
	re, err := compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(strings.TrimSpace(text))
}

// MatchingPattern returns the first pattern that matches text.
func MatchingPattern(text string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if MatchesPattern(text, p) {
			return p, true
		}
	}
	return "", false
}

// MatchesAllowlist reports whether text matches any allowlist pattern.
func MatchesAllowlist(text string, allowlist []string) bool {
	_, ok := MatchingPattern(text, allowlist)
	return ok
}

// MatchesDenylist reports whether text matches any denylist pattern.
func MatchesDenylist(text string, denylist []string) bool {
	_, ok := MatchingPattern(text, denylist)
	return ok
}
