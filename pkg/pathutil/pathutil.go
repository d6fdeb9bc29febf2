// Package pathutil normalizes transfer paths and classifies endpoints as
// local or remote ahead of enumeration and planning.
package pathutil

import "strings"

// Normalize converts backslashes to forward slashes and collapses repeated
// slashes. It never resolves "." or ".." segments and never rewrites glob
// characters. When preserveTrailingSlash is false, a trailing slash is
// stripped (except for the root "/").
func Normalize(p string, preserveTrailingSlash bool) string {
	if p == "" {
		return ""
	}

	s := strings.ReplaceAll(p, "\\", "/")

	for strings.Contains(s, "//") {
		s = strings.ReplaceAll(s, "//", "/")
	}

	if !preserveTrailingSlash {
		for len(s) > 1 && strings.HasSuffix(s, "/") {
			s = s[:len(s)-1]
		}
	}

	return s
}

// isWindowsDrive reports whether s begins with a drive letter, e.g. "C:".
func isWindowsDrive(s string) bool {
	if len(s) < 2 || s[1] != ':' {
		return false
	}

	c := s[0]

	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// IsRemote reports whether s is an alias:/path endpoint. A path is remote
// iff its first ':' appears before its first '/' and it is not a Windows
// drive specifier.
func IsRemote(s string) bool {
	if isWindowsDrive(s) {
		return false
	}

	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return false
	}

	slash := strings.IndexByte(s, '/')
	if slash < 0 {
		return true
	}

	return colon < slash
}

// IsDisallowedGlob reports whether s contains "**" or a non-terminal path
// segment with a wildcard character. Only the final segment may carry a
// glob; "**" is never allowed anywhere.
func IsDisallowedGlob(s string) bool {
	if strings.Contains(s, "**") {
		return true
	}

	parts := strings.Split(s, "/")
	if len(parts) <= 1 {
		return false
	}

	for _, seg := range parts[:len(parts)-1] {
		if strings.ContainsAny(seg, "*?") {
			return true
		}
	}

	return false
}

// HasGlob reports whether s contains a wildcard character.
func HasGlob(s string) bool {
	return strings.ContainsAny(s, "*?")
}

// MatchSegment matches a single path segment against a pattern supporting
// '*' (any run, including empty) and '?' (exactly one rune). It does not
// support "**" or character classes.
func MatchSegment(pattern, text string) bool {
	return matchRunes([]rune(pattern), []rune(text))
}

func matchRunes(pat, text []rune) bool {
	if len(pat) == 0 {
		return len(text) == 0
	}

	if pat[0] == '*' {
		if matchRunes(pat[1:], text) {
			return true
		}

		if len(text) > 0 && matchRunes(pat, text[1:]) {
			return true
		}

		return false
	}

	if len(text) > 0 && (pat[0] == '?' || pat[0] == text[0]) {
		return matchRunes(pat[1:], text[1:])
	}

	return false
}
