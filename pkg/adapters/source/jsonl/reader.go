// Package jsonl reads job records from newline-delimited JSON.
package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ekaya-inc/ekaya-jobmart/pkg/adapters/source"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/models"
)

// maxLineSize bounds a single record; job descriptions can be long.
const maxLineSize = 16 * 1024 * 1024

// Reader decodes one JobRecord per non-blank line.
type Reader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int64
}

var _ source.Reader = (*Reader)(nil)

// NewReader reads records from r. If r is an io.Closer it is closed by Close.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	reader := &Reader{scanner: scanner}
	if c, ok := r.(io.Closer); ok {
		reader.closer = c
	}
	return reader
}

// Open opens the file at path for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open record file: %w", err)
	}
	return NewReader(f), nil
}

func (r *Reader) Next(ctx context.Context) (*models.JobRecord, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, fmt.Errorf("read line %d: %w", r.line+1, err)
			}
			return nil, io.EOF
		}
		r.line++

		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec models.JobRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, &source.DecodeError{Position: r.line, JobID: peekJobID(line), Err: err}
		}
		return &rec, nil
	}
}

// peekJobID recovers the job id from a line whose full decode failed on
// some other field.
func peekJobID(line []byte) string {
	var head struct {
		JobID jsonutil.FlexibleString `json:"job_id"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		return ""
	}
	return string(head.JobID)
}

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
