package util

import "strings"

// StorageKey prefixes key with ns. An empty namespace leaves key untouched.
func StorageKey(ns, key string) string {
	if ns == "" {
		return key
	}
	return ns + ":" + key
}

// ShortKey truncates the digest of a storage key for log lines. A namespace
// prefix is kept whole.
func ShortKey(key string) string {
	const n = 16
	ns, digest := "", key
	if i := strings.LastIndexByte(key, ':'); i >= 0 {
		ns, digest = key[:i+1], key[i+1:]
	}
	if len(digest) <= n {
		return key
	}
	return ns + digest[:n]
}
