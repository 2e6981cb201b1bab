// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"
)

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader splits an NDJSON body into records as bytes arrive and hands
// each non-empty fragment to a callback. It never buffers the whole body.
type StreamReader struct {
	reader *bufio.Reader
	stats  StreamStats
}

// NewStreamReader wraps r.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{
		reader: bufio.NewReader(r),
		stats:  StreamStats{StartTime: time.Now()},
	}
}

// Process reads until a done record, end of body, or a read failure.
//
// A fragment is delivered before its record's done flag is looked at, so the
// final record's text is never lost. End of body without a done record is a
// normal completion. Lines that are blank or not valid records are skipped.
func (s *StreamReader) Process(ctx context.Context, onFragment func(string)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, readErr := s.reader.ReadBytes('\n')
		if len(line) > 0 {
			done, err := s.handleLine(line, onFragment)
			if err != nil || done {
				return err
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
				s.stats.EndTime = time.Now()
				return nil
			}
			return readErr
		}
	}
}

func (s *StreamReader) handleLine(line []byte, onFragment func(string)) (bool, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return false, nil
	}

	var rec streamRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		s.stats.Skipped++
		return false, nil
	}
	if rec.Error != "" {
		return true, &ClientError{Type: ErrTypeUnexpected, Message: "server reported an error", Cause: errors.New(rec.Error)}
	}

	if rec.Model != "" {
		s.stats.Model = rec.Model
	}
	if frag := rec.fragment(); frag != "" {
		if s.stats.Tokens == 0 {
			s.stats.FirstToken = time.Since(s.stats.StartTime)
		}
		s.stats.Tokens++
		onFragment(frag)
	}

	if rec.Done {
		s.stats.Done = true
		s.stats.DoneReason = rec.DoneReason
		s.stats.PromptTokens = rec.PromptEvalCount
		s.stats.CompletionTokens = rec.EvalCount
		s.stats.EvalDuration = time.Duration(rec.EvalDuration)
		s.stats.EndTime = time.Now()
		return true, nil
	}
	return false, nil
}

// Stats returns what has been observed so far.
func (s *StreamReader) Stats() StreamStats {
	return s.stats
}

// =============================================================================
// STREAM STATISTICS
// =============================================================================

// StreamStats summarizes one response.
type StreamStats struct {
	Model      string
	StartTime  time.Time
	EndTime    time.Time
	FirstToken time.Duration // latency to the first fragment

	Tokens  int // fragments delivered
	Skipped int // malformed lines dropped

	// Set only when the server sent a done record.
	Done             bool
	DoneReason       string
	PromptTokens     int
	CompletionTokens int
	EvalDuration     time.Duration
}

// TokensPerSecond uses the server's own eval timing when available.
func (s StreamStats) TokensPerSecond() float64 {
	if s.EvalDuration <= 0 {
		return 0
	}
	return float64(s.CompletionTokens) / s.EvalDuration.Seconds()
}

// Elapsed is wall-clock time from request to last byte.
func (s StreamStats) Elapsed() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}
