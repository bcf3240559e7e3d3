package changetoken

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

const writeQueueSize = 256

type writeJob struct {
	line []byte
	done chan struct{}
}

// writeQueue serializes appends to the changelog through one worker so lines
// land in enqueue order. A failed write is logged and the queue moves on.
type writeQueue struct {
	path   string
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
	jobs   chan writeJob
	wg     sync.WaitGroup
}

func newWriteQueue(path string, logger zerolog.Logger) *writeQueue {
	q := &writeQueue{
		path:   path,
		logger: logger,
		jobs:   make(chan writeJob, writeQueueSize),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *writeQueue) run() {
	defer q.wg.Done()
	for job := range q.jobs {
		if job.line != nil {
			if err := q.write(job.line); err != nil {
				q.logger.Warn().Err(err).Str("path", q.path).Msg("change token log append failed")
			}
		}
		if job.done != nil {
			close(job.done)
		}
	}
}

func (q *writeQueue) write(line []byte) error {
	if err := os.MkdirAll(filepath.Dir(q.path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(q.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	if _, err := file.Write(line); err != nil {
		_ = file.Close()
		return fmt.Errorf("append log: %w", err)
	}
	return file.Close()
}

func (q *writeQueue) enqueue(record Record) {
	line, err := json.Marshal(record)
	if err != nil {
		q.logger.Warn().Err(err).Str("token", record.Token).Msg("encode change token record")
		return
	}
	line = append(line, '\n')

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.jobs <- writeJob{line: line}
}

func (q *writeQueue) flush(ctx context.Context) error {
	done := make(chan struct{})
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.jobs <- writeJob{done: done}
	q.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *writeQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	q.wg.Wait()
}

// readLog replays the changelog. Malformed lines are skipped and later lines
// replace earlier state for the same token. A missing file is empty.
func readLog(ctx context.Context, path string, logger zerolog.Logger) (map[string]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]Record{}, nil
		}
		return nil, fmt.Errorf("open change token log: %w", err)
	}
	defer file.Close()

	records := make(map[string]Record)
	reader := bufio.NewReader(file)
	lineNo := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			line = bytes.TrimSpace(line)
			if len(line) > 0 {
				var record Record
				if err := json.Unmarshal(line, &record); err != nil || record.Token == "" {
					logger.Debug().Int("line", lineNo).Msg("skipping malformed change token log line")
				} else {
					records[record.Token] = record
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return records, fmt.Errorf("read change token log: %w", readErr)
		}
	}
	return records, nil
}
