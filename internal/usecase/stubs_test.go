package usecase

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/example/dish-advisor/internal/inference"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	jpegBytes = append([]byte{0xff, 0xd8, 0xff, 0xe0}, make([]byte, 32)...)
)

type stubClient struct {
	mu            sync.Mutex
	resp          *inference.ChatResponse
	err           error
	panicWith     any
	calls         []inference.ChatRequest
	stagedExisted []bool
}

func (s *stubClient) Chat(ctx context.Context, req inference.ChatRequest) (*inference.ChatResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	for _, msg := range req.Messages {
		for _, path := range msg.Images {
			_, err := os.Stat(path)
			s.stagedExisted = append(s.stagedExisted, err == nil)
		}
	}
	s.mu.Unlock()

	if s.panicWith != nil {
		panic(s.panicWith)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func (s *stubClient) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type failingStager struct {
	writeErr error
}

func (f *failingStager) Write(interactionID, ext string, data []byte) (string, error) {
	return "", f.writeErr
}

func (f *failingStager) Remove(path string) error {
	return errors.New("nothing to remove")
}

// leakyStager writes through to a real stager but refuses to remove files.
type leakyStager struct {
	Stager
	removeErr error
}

func (l *leakyStager) Remove(path string) error {
	return l.removeErr
}
