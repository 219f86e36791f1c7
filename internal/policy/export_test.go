package policy

var CachedPatterns = cachedPatterns
