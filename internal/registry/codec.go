package registry

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// Encode writes one "id;;displayName;;outputDir" line per work. An empty
// registry encodes to zero bytes.
func Encode(works []TrackedWork) []byte {
	var buf bytes.Buffer
	for _, w := range works {
		buf.WriteString(strings.Join([]string{w.ID, w.DisplayName, w.OutputDir}, Delimiter))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Decode parses registry file content. Blank lines are ignored; any other
// line that does not hold exactly three valid fields makes the file corrupt.
func Decode(data []byte) ([]TrackedWork, error) {
	var works []TrackedWork
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, Delimiter)
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: expected 3 fields, got %d", lineNo, len(fields))
		}
		w := TrackedWork{ID: fields[0], DisplayName: fields[1], OutputDir: fields[2]}
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		works = append(works, w)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return works, nil
}
