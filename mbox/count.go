package mbox

import (
	"errors"
	"fmt"
	"io"
	"os"

	mboxlib "github.com/emersion/go-mbox"
)

// CountMessages makes a fast pass over the given mbox files and returns an
// estimate of the total message count, used to size the progress bar. It
// splits on "From " lines only, so the number can differ slightly from what
// the full parser emits; files that cannot be read contribute zero.
func CountMessages(paths []string) (int, error) {
	total := 0
	for _, path := range paths {
		count, err := countFile(path)
		if err != nil {
			return total, fmt.Errorf("count %s: %w", path, err)
		}
		total += count
	}
	return total, nil
}

func countFile(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	reader := mboxlib.NewReader(file)
	count := 0
	for {
		msg, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return count, err
		}
		if _, err := io.Copy(io.Discard, msg); err != nil {
			count++
			continue
		}
		count++
	}
}
