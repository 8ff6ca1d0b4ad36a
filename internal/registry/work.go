package registry

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/TobiSchelling/ficstats/internal/source"
)

// Delimiter separates fields in the registry file. ';' is an illegal name
// character and output directories are checked for it, so it never appears
// inside a field.
const Delimiter = ";;"

const illegalNameChars = `/<>:"\|?*;`

// Derived filenames must fit in a 255-byte path component. The longest one is
// the history temp file ".<name>_<id>_workHistory.json.tmp-<10 digits>", which
// adds 34 bytes to the name and ID.
const (
	MaxIDLen   = 20
	MaxNameLen = 255 - 34 - MaxIDLen
)

var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// TrackedWork is one registry row.
type TrackedWork struct {
	ID          string
	DisplayName string
	OutputDir   string

	key string
}

// Key is a stable identity for the row within this session. It survives
// edits, unlike ID and DisplayName, and is never persisted.
func (w TrackedWork) Key() string {
	return w.key
}

// ValidationError rejects user input before anything is mutated.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// NormalizeName puts a display name in Unicode NFC so that visually equal
// names compare and hash to the same filename.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// ValidateName checks that name is safe to use in filenames on every platform.
func ValidateName(name string) error {
	invalid := func(reason string) error {
		return &ValidationError{Field: "display name", Value: name, Reason: reason}
	}

	if name == "" {
		return invalid("must not be empty")
	}
	if len(name) > MaxNameLen {
		return invalid(fmt.Sprintf("must be at most %d bytes, got %d", MaxNameLen, len(name)))
	}
	if i := strings.IndexAny(name, illegalNameChars); i >= 0 {
		return invalid(fmt.Sprintf("must not contain %q", name[i]))
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return invalid("must not contain control characters")
		}
	}
	if _, ok := reservedNames[strings.ToUpper(name)]; ok {
		return invalid("is a reserved device name")
	}
	if strings.HasSuffix(name, " ") || strings.HasSuffix(name, ".") {
		return invalid("must not end with a space or period")
	}
	return nil
}

// ValidateID checks that id is a work ID.
func ValidateID(id string) error {
	if !source.IsWorkID(id) {
		return &ValidationError{Field: "work ID", Value: id, Reason: "must be a string of digits"}
	}
	if len(id) > MaxIDLen {
		return &ValidationError{Field: "work ID", Value: id, Reason: fmt.Sprintf("must be at most %d digits", MaxIDLen)}
	}
	return nil
}

// ValidateOutputDir checks that dir is absolute and storable.
func ValidateOutputDir(dir string) error {
	invalid := func(reason string) error {
		return &ValidationError{Field: "output directory", Value: dir, Reason: reason}
	}
	if !filepath.IsAbs(dir) {
		return invalid("must be an absolute path")
	}
	if strings.Contains(dir, Delimiter) {
		return invalid(fmt.Sprintf("must not contain %q", Delimiter))
	}
	if strings.ContainsAny(dir, "\r\n") {
		return invalid("must not contain line breaks")
	}
	return nil
}

// Validate checks every field of w.
func (w TrackedWork) Validate() error {
	if err := ValidateID(w.ID); err != nil {
		return err
	}
	if err := ValidateName(w.DisplayName); err != nil {
		return err
	}
	return ValidateOutputDir(w.OutputDir)
}
