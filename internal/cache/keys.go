package cache

import "strings"

// Key builds the cache key for (language, namespace, key). The translation
// key may itself contain separators, so parsing always splits from the left
// into exactly three segments.
func Key(language, namespace, key string) string {
	var b strings.Builder
	b.Grow(len(language) + len(namespace) + len(key) + 2)
	b.WriteString(language)
	b.WriteByte(':')
	b.WriteString(namespace)
	b.WriteByte(':')
	b.WriteString(key)
	return b.String()
}

// SplitKey decomposes a cache key into language, namespace and translation
// key. Returns ok=false for malformed keys.
func SplitKey(cacheKey string) (language, namespace, key string, ok bool) {
	parts := strings.SplitN(cacheKey, ":", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// keyNamespace extracts the middle segment; used by namespace invalidation.
func keyNamespace(cacheKey string) (string, bool) {
	_, ns, _, ok := SplitKey(cacheKey)
	return ns, ok
}
