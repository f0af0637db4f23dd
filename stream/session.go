package stream

import (
	"strings"
	"sync"

	"github.com/c360/agentwire/message"
)

// ChunkFunc observes each chunk's text as it arrives
type ChunkFunc func(text string)

// Result is the aggregate of a completed stream
type Result struct {
	ID         string `json:"id"`
	Message    string `json:"message"`
	Model      string `json:"model,omitempty"`
	TokenCount int    `json:"tokenCount,omitempty"`
	Chunks     int    `json:"chunks"`
}

// Session accumulates the chunks of one streaming request
type Session struct {
	mu         sync.Mutex
	responseID string
	chunks     []string
	onChunk    ChunkFunc
	finished   bool
}

// NewSession creates a session that forwards chunk text to onChunk, which may be nil
func NewSession(onChunk ChunkFunc) *Session {
	return &Session{onChunk: onChunk}
}

// Append records a chunk frame and invokes the observer synchronously
func (s *Session) Append(frame message.StreamFrame) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.chunks = append(s.chunks, frame.Content)
	if frame.ID != "" {
		s.responseID = frame.ID
	}
	onChunk := s.onChunk
	s.mu.Unlock()

	if onChunk != nil {
		onChunk(frame.Content)
	}
}

// Len returns the number of chunks received so far
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// Finish builds the result from the completion frame. Accumulated chunks win
// over the frame's own message, which is only used when no chunk arrived.
func (s *Session) Finish(frame message.StreamFrame) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true

	result := &Result{
		ID:         frame.ID,
		Message:    frame.Message,
		Model:      frame.Model,
		TokenCount: frame.TokenCount,
		Chunks:     len(s.chunks),
	}
	if result.ID == "" {
		result.ID = s.responseID
	}
	if len(s.chunks) > 0 {
		result.Message = strings.Join(s.chunks, "")
	}
	s.chunks = nil
	return result
}

// Discard drops any partial text after a failed stream
func (s *Session) Discard() {
	s.mu.Lock()
	s.finished = true
	s.chunks = nil
	s.mu.Unlock()
}
