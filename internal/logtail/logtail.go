package logtail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line. A missing file is not an error.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Record is one line written by slog's JSON handler.
type Record struct {
	Time    time.Time
	Level   string
	Message string
	// Attrs holds every other key, rendered as text.
	Attrs map[string]string
}

// Parse decodes a JSON log line. ok is false for anything that is not a
// JSON object, so callers can show such lines verbatim.
func Parse(line string) (Record, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return Record{}, false
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return Record{}, false
	}

	var rec Record
	if v, ok := raw["time"]; ok {
		_ = json.Unmarshal(v, &rec.Time)
		delete(raw, "time")
	}
	if v, ok := raw["level"]; ok {
		_ = json.Unmarshal(v, &rec.Level)
		delete(raw, "level")
	}
	if v, ok := raw["msg"]; ok {
		_ = json.Unmarshal(v, &rec.Message)
		delete(raw, "msg")
	}
	if len(raw) > 0 {
		rec.Attrs = make(map[string]string, len(raw))
		for k, v := range raw {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				rec.Attrs[k] = s
				continue
			}
			rec.Attrs[k] = string(v)
		}
	}
	return rec, true
}

// Format renders a record as "15:04:05 LEVEL message key=value ...", with
// attributes in key order.
func Format(rec Record) string {
	var b strings.Builder
	if !rec.Time.IsZero() {
		b.WriteString(rec.Time.Local().Format("15:04:05"))
		b.WriteByte(' ')
	}
	level := rec.Level
	if level == "" {
		level = "INFO"
	}
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(rec.Message)

	keys := make([]string, 0, len(rec.Attrs))
	for k := range rec.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := rec.Attrs[k]
		if strings.ContainsAny(v, " \t") {
			v = fmt.Sprintf("%q", v)
		}
		fmt.Fprintf(&b, " %s=%s", k, v)
	}
	return b.String()
}

// FormatLines parses and formats lines, passing through those that are not
// JSON records.
func FormatLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		if rec, ok := Parse(line); ok {
			out[i] = Format(rec)
			continue
		}
		out[i] = line
	}
	return out
}
