package testutil

import (
	"bufio"
	"strings"
	"testing"
)

// ParseSSEData parses a Server-Sent Events stream and returns the data
// payload of each event in order.
//
// Handles the W3C framing rules the streaming surface relies on:
//   - Multiple "data:" lines in one event are joined with newline
//   - An empty line terminates an event
//   - Comment lines starting with ":" are ignored
func ParseSSEData(t *testing.T, body string) []string {
	t.Helper()

	var events []string
	var dataLines []string
	lineNum := 0

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))

		case line == "":
			if len(dataLines) > 0 {
				events = append(events, strings.Join(dataLines, "\n"))
				dataLines = nil
			}

		case strings.HasPrefix(line, ":"):
			// comment, ignored

		default:
			t.Fatalf("SSE parse error at line %d: unexpected line %q", lineNum, line)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("SSE scan error: %v", err)
	}
	if len(dataLines) > 0 {
		t.Fatalf("SSE stream ended without terminating empty line (pending %q)", dataLines)
	}

	return events
}
