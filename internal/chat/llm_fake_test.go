package chat

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/cfcgs/cfcgs-tracker-backend/pkg/llm"
)

// scriptedLLM replays canned completions in call order and records the
// prompts it received.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   [][]llm.Message
}

func (s *scriptedLLM) Complete(_ context.Context, messages []llm.Message) (llm.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, messages)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return nil, errors.New("scripted llm exhausted")
	}
	response := s.responses[0]
	s.responses = s.responses[1:]
	return &textStream{content: response}, nil
}

func (s *scriptedLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func (s *scriptedLLM) lastPrompt() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return nil
	}
	return s.prompts[len(s.prompts)-1]
}

type textStream struct {
	content string
	done    bool
}

func (ts *textStream) Recv() (llm.Chunk, error) {
	if ts.done {
		return llm.Chunk{}, io.EOF
	}
	ts.done = true
	return llm.Chunk{Content: ts.content}, nil
}

func (ts *textStream) Close() error { return nil }
