// Package logs reads the daemon log file for the CLI, including follow
// mode so operators can watch a render without shell plumbing.
package logs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const readChunk = 32 * 1024

// Options controls one Tail invocation.
type Options struct {
	// Lines is how many trailing lines to emit before following.
	Lines int
	// Follow keeps reading appended lines until the context is cancelled.
	Follow bool
	// Poll is the follow-mode check interval.
	Poll time.Duration
}

// Tail writes the last Options.Lines lines of the file to w and, in follow
// mode, streams appended lines until ctx is cancelled. A missing file is not
// an error in follow mode; Tail waits for it to appear.
func Tail(ctx context.Context, path string, w io.Writer, opts Options) error {
	if opts.Lines <= 0 {
		opts.Lines = 50
	}
	if opts.Poll <= 0 {
		opts.Poll = 500 * time.Millisecond
	}

	offset, err := emitLast(path, w, opts.Lines)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if !opts.Follow {
			return fmt.Errorf("log file %s does not exist", path)
		}
		offset = 0
	}
	if !opts.Follow {
		return nil
	}

	ticker := time.NewTicker(opts.Poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			next, err := emitFrom(path, w, offset)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					offset = 0
					continue
				}
				return err
			}
			offset = next
		}
	}
}

// emitLast writes the trailing n lines and returns the end-of-file offset.
func emitLast(path string, w io.Writer, n int) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, err
	}
	size := info.Size()

	var tail []byte
	pos := size
	for pos > 0 && bytes.Count(tail, []byte{'\n'}) <= n {
		chunk := int64(readChunk)
		if chunk > pos {
			chunk = pos
		}
		pos -= chunk
		buf := make([]byte, chunk)
		if _, err := file.ReadAt(buf, pos); err != nil && err != io.EOF {
			return 0, err
		}
		tail = append(buf, tail...)
	}

	lines := bytes.Split(bytes.TrimSuffix(tail, []byte{'\n'}), []byte{'\n'})
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
			return 0, err
		}
	}
	return size, nil
}

// emitFrom writes everything appended past offset and returns the new
// offset. Truncation (rotation) resets to the start of the file.
func emitFrom(path string, w io.Writer, offset int64) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return offset, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, err
	}
	size := info.Size()
	if size < offset {
		offset = 0
	}
	if size == offset {
		return offset, nil
	}

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, err
	}
	written, err := io.Copy(w, file)
	return offset + written, err
}
