package source

import (
	"fmt"
	"net/url"
	"strings"
)

// IsWorkID reports whether s is a non-empty string of decimal digits.
func IsWorkID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseWorkID accepts either a bare work ID or a work URL such as
// https://archiveofourown.org/works/32751484/chapters/81257581.
func ParseWorkID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if IsWorkID(input) {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil || u.Path == "" {
		return "", fmt.Errorf("cannot identify a work ID in %q", input)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "works" && IsWorkID(parts[i+1]) {
			return parts[i+1], nil
		}
	}
	return "", fmt.Errorf("cannot identify a work ID in %q", input)
}
