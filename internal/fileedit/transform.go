package fileedit

import (
	"strings"
)

// SetKeyValue sets KEY=value on every uncommented line assigning key,
// appending one line when the key is absent. Other lines are untouched.
func SetKeyValue(key, value string) Transform {
	want := key + "=" + value
	return func(lines []string) ([]string, bool) {
		changed, found := false, false
		for i, line := range lines {
			if !AssignsKey(line, key) {
				continue
			}
			found = true
			if line != want {
				lines[i] = want
				changed = true
			}
		}
		if !found {
			return append(lines, want), true
		}
		return lines, changed
	}
}

// AppendMissing appends every wanted line not already present, compared
// with surrounding whitespace trimmed.
func AppendMissing(wanted ...string) Transform {
	return func(lines []string) ([]string, bool) {
		present := make(map[string]bool, len(lines))
		for _, line := range lines {
			present[strings.TrimSpace(line)] = true
		}
		changed := false
		for _, w := range wanted {
			if !present[strings.TrimSpace(w)] {
				lines = append(lines, w)
				present[strings.TrimSpace(w)] = true
				changed = true
			}
		}
		return lines, changed
	}
}

// AssignsKey reports whether line is an uncommented KEY=... assignment.
func AssignsKey(line, key string) bool {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "#") {
		return false
	}
	k, _, ok := strings.Cut(trimmed, "=")
	return ok && strings.TrimSpace(k) == key
}

// ValueOf returns the unquoted value of the last uncommented assignment
// of key.
func ValueOf(lines []string, key string) (string, bool) {
	value, found := "", false
	for _, line := range lines {
		if !AssignsKey(line, key) {
			continue
		}
		_, v, _ := strings.Cut(strings.TrimSpace(line), "=")
		value, found = Unquote(strings.TrimSpace(v)), true
	}
	return value, found
}

// Unquote strips one pair of matching single or double quotes.
func Unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
