package logger

import (
	"bufio"
	"fmt"
	"os"
)

// MaxTailLines caps how many lines Tail will return in one call.
const MaxTailLines = 1000

// Tail returns the last n lines of the log file at path. A missing file
// yields an empty slice, not an error, so callers can tail a log that has
// not been written to yet. n is clamped to [1, MaxTailLines].
func Tail(path string, n int) ([]string, error) {
	if n <= 0 {
		n = 1
	}
	if n > MaxTailLines {
		n = MaxTailLines
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	// Ring buffer over the scan keeps memory bounded by n regardless of
	// how large the log has grown.
	ring := make([]string, n)
	count := 0

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		ring[count%n] = line
		count++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	if count < n {
		return append([]string{}, ring[:count]...), nil
	}

	out := make([]string, 0, n)
	start := count % n
	out = append(out, ring[start:]...)
	out = append(out, ring[:start]...)
	return out, nil
}
