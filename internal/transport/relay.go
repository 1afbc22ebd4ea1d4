package transport

import (
	"bufio"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// ackFrame opens the caller's stream before any backend data arrives.
const ackFrame = "data: {}\n\n"

// dataPrefix marks a Server-Sent-Event data line.
const dataPrefix = "data:"

// RelayResult is what a relay run produced.
type RelayResult struct {
	// Terminal is the JSON payload of the last complete data line, with the
	// SSE prefix stripped. Empty when the backend sent no data line.
	Terminal []byte

	// Forwarded counts the frames written to the caller.
	Forwarded int

	// Disconnected reports that the caller went away mid-stream. The relay
	// stops forwarding at that point but keeps the terminal frame captured
	// so far.
	Disconnected bool
}

// Relay forwards a backend SSE byte stream to a caller.
type Relay struct {
	logger *slog.Logger
}

// NewRelay creates a relay.
func NewRelay(logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{logger: logger}
}

// Run consumes src line by line. When forward is true every data line is
// written to dst verbatim as an SSE frame, preceded by an immediate empty
// acknowledgment frame; when forward is false intermediate lines are
// accumulated and discarded, keeping only the last. The last complete data
// line is always retained as the terminal frame.
//
// src is closed on every exit path. A write failure on dst is the caller
// disconnecting: the relay stops and releases the backend stream without
// error.
func (r *Relay) Run(dst io.Writer, src io.ReadCloser, forward bool) (*RelayResult, error) {
	defer src.Close()

	result := &RelayResult{}

	if forward {
		if err := r.emit(dst, ackFrame); err != nil {
			result.Disconnected = true
			return result, nil
		}
	}

	scanner := bufio.NewScanner(src)
	// Backend frames can carry whole documents.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lastLine string
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		lastLine = line
		if !forward {
			continue
		}
		if err := r.emit(dst, line+"\n\n"); err != nil {
			r.logger.Info("caller disconnected, releasing backend stream")
			result.Disconnected = true
			break
		}
		result.Forwarded++
	}
	result.Terminal = terminalFrame(lastLine)

	if !result.Disconnected {
		if err := scanner.Err(); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (r *Relay) emit(dst io.Writer, frame string) error {
	if _, err := io.WriteString(dst, frame); err != nil {
		return err
	}
	if f, ok := dst.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

func terminalFrame(line string) []byte {
	if line == "" {
		return nil
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == "" {
		return nil
	}
	return []byte(payload)
}
