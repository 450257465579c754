package backend

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// maxLineSize bounds one SSE line; a full page of markdown fits easily.
const maxLineSize = 1 << 20

const (
	ssePrefix = "data:"
	sseDone   = "[DONE]"
)

// StreamParser reads an OpenAI-style chat completion delivered as
// server-sent events.
type StreamParser struct {
	lines *bufio.Scanner
}

func NewStreamParser(r io.Reader) *StreamParser {
	lines := bufio.NewScanner(r)
	lines.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &StreamParser{lines: lines}
}

// StreamChunk is one decoded delta.
type StreamChunk struct {
	Content      string
	FinishReason string
	Done         bool
}

// payload returns the data of the next "data:" line, or false at EOF.
func (p *StreamParser) payload() (string, bool) {
	for p.lines.Scan() {
		if data, ok := strings.CutPrefix(p.lines.Text(), ssePrefix); ok {
			return strings.TrimSpace(data), true
		}
	}
	return "", false
}

// Next returns the next delta. Lines that do not decode, such as
// keep-alives, are skipped. EOF without [DONE] ends the stream.
func (p *StreamParser) Next() (*StreamChunk, error) {
	for {
		data, ok := p.payload()
		if !ok {
			if err := p.lines.Err(); err != nil {
				return nil, err
			}
			return &StreamChunk{Done: true}, nil
		}
		if data == sseDone {
			return &StreamChunk{Done: true}, nil
		}

		var resp chatResponse
		if json.Unmarshal([]byte(data), &resp) != nil || len(resp.Choices) == 0 {
			continue
		}
		c := resp.Choices[0]
		return &StreamChunk{
			Content:      c.Delta.Content,
			FinishReason: c.FinishReason,
			Done:         c.FinishReason != "",
		}, nil
	}
}

// Collect drains the stream and returns the joined content and the last
// finish reason the server sent.
func (p *StreamParser) Collect() (text, reason string, err error) {
	var sb strings.Builder
	for {
		chunk, err := p.Next()
		if err != nil {
			return sb.String(), reason, err
		}
		sb.WriteString(chunk.Content)
		if chunk.FinishReason != "" {
			reason = chunk.FinishReason
		}
		if chunk.Done {
			return sb.String(), reason, nil
		}
	}
}
