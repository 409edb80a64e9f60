package usecase

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/example/dish-advisor/internal/inference"
	"github.com/example/dish-advisor/internal/staging"
)

func newTestStore(t *testing.T) *staging.Store {
	t.Helper()
	store, err := staging.NewStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create staging store: %v", err)
	}
	return store
}

func assertNoStagedFiles(t *testing.T, store *staging.Store) {
	t.Helper()
	entries, err := os.ReadDir(store.Dir())
	if err != nil {
		t.Fatalf("failed to read staging dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected staging dir to be empty, found %d entries", len(entries))
	}
}

func TestInvokeSuccessRemovesStagedFile(t *testing.T) {
	store := newTestStore(t)
	client := &stubClient{resp: &inference.ChatResponse{Text: "Roughly 450 kcal."}}
	invoker := NewInvoker(store, client, "llama3.2-vision", 1, zap.NewNop())

	answer, err := invoker.Invoke(context.Background(), "id-1", Image{Format: FormatPNG, Data: pngBytes}, "Calories?")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if answer != "Roughly 450 kcal." {
		t.Fatalf("unexpected answer %q", answer)
	}

	if len(client.calls) != 1 {
		t.Fatalf("expected one call, got %d", len(client.calls))
	}
	req := client.calls[0]
	if req.Model != "llama3.2-vision" || len(req.Messages) != 1 {
		t.Fatalf("unexpected request %+v", req)
	}
	msg := req.Messages[0]
	if msg.Role != inference.RoleUser || msg.Content != "Calories?" || len(msg.Images) != 1 {
		t.Fatalf("unexpected message %+v", msg)
	}
	if !client.stagedExisted[0] {
		t.Fatal("staged image should exist while the service is called")
	}
	assertNoStagedFiles(t, store)
}

func TestInvokeFailureRemovesStagedFile(t *testing.T) {
	store := newTestStore(t)
	client := &stubClient{err: &inference.StatusError{StatusCode: 500}}
	invoker := NewInvoker(store, client, "m", 1, zap.NewNop())

	_, err := invoker.Invoke(context.Background(), "id-2", Image{Format: FormatJPEG, Data: jpegBytes}, "Protein?")
	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *Failure, got %T", err)
	}
	if failure.Kind != FailureProtocol {
		t.Fatalf("unexpected kind %s", failure.Kind)
	}
	assertNoStagedFiles(t, store)
}

func TestInvokeRecoversPanic(t *testing.T) {
	store := newTestStore(t)
	client := &stubClient{panicWith: "nil map write"}
	invoker := NewInvoker(store, client, "m", 1, zap.NewNop())

	answer, err := invoker.Invoke(context.Background(), "id-3", Image{Format: FormatPNG, Data: pngBytes}, "Fat?")
	if answer != "" {
		t.Fatalf("expected no answer, got %q", answer)
	}
	failure := AsFailure(err)
	if failure == nil || failure.Kind != FailureUnclassified {
		t.Fatalf("expected unclassified failure, got %v", err)
	}
	assertNoStagedFiles(t, store)

	// the slot must have been released
	client.panicWith = nil
	client.resp = &inference.ChatResponse{Text: "ok"}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := invoker.Invoke(ctx, "id-4", Image{Format: FormatPNG, Data: pngBytes}, "Fat?"); err != nil {
		t.Fatalf("expected second call to succeed, got %v", err)
	}
}

func TestInvokeStorageFailureSkipsNetworkCall(t *testing.T) {
	client := &stubClient{resp: &inference.ChatResponse{Text: "unused"}}
	invoker := NewInvoker(&failingStager{writeErr: errors.New("read-only file system")}, client, "m", 1, zap.NewNop())

	_, err := invoker.Invoke(context.Background(), "id-5", Image{Format: FormatPNG, Data: pngBytes}, "Sugar?")
	if got := AsFailure(err); got == nil || got.Kind != FailureStorage {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if client.callCount() != 0 {
		t.Fatalf("expected no inference call, got %d", client.callCount())
	}
}

func TestInvokeKeepsAnswerWhenCleanupFails(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	stager := &leakyStager{Stager: newTestStore(t), removeErr: errors.New("busy")}
	client := &stubClient{resp: &inference.ChatResponse{Text: "Balanced meal."}}
	invoker := NewInvoker(stager, client, "m", 1, zap.New(core))

	answer, err := invoker.Invoke(context.Background(), "id-6", Image{Format: FormatPNG, Data: pngBytes}, "Balanced?")
	if err != nil {
		t.Fatalf("expected answer despite cleanup failure, got %v", err)
	}
	if answer != "Balanced meal." {
		t.Fatalf("unexpected answer %q", answer)
	}
	if logs.FilterMessage("failed to remove staged image").Len() != 1 {
		t.Fatal("expected cleanup failure to be logged")
	}
}

func TestInvokeBlankTextIsEmptyResponse(t *testing.T) {
	store := newTestStore(t)
	client := &stubClient{resp: &inference.ChatResponse{Text: "  \n"}}
	invoker := NewInvoker(store, client, "m", 1, zap.NewNop())

	_, err := invoker.Invoke(context.Background(), "id-7", Image{Format: FormatPNG, Data: pngBytes}, "Salt?")
	if got := AsFailure(err); got == nil || got.Kind != FailureEmptyResponse {
		t.Fatalf("expected empty response failure, got %v", err)
	}
	if !errors.Is(err, inference.ErrEmptyResponse) {
		t.Fatal("expected ErrEmptyResponse in chain")
	}
	assertNoStagedFiles(t, store)
}

type blockingClient struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	release  chan struct{}
}

func (b *blockingClient) Chat(ctx context.Context, req inference.ChatRequest) (*inference.ChatResponse, error) {
	n := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	for {
		seen := b.maxSeen.Load()
		if n <= seen || b.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	<-b.release
	return &inference.ChatResponse{Text: "done"}, nil
}

func TestInvokeSerialisesCalls(t *testing.T) {
	store := newTestStore(t)
	client := &blockingClient{release: make(chan struct{})}
	invoker := NewInvoker(store, client, "m", 1, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := invoker.Invoke(context.Background(), id, Image{Format: FormatPNG, Data: pngBytes}, "Q?"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}([]string{"a", "b", "c"}[i])
	}

	for i := 0; i < 3; i++ {
		select {
		case client.release <- struct{}{}:
		case <-time.After(2 * time.Second):
			t.Fatal("inference call never started")
		}
	}
	wg.Wait()

	if got := client.maxSeen.Load(); got != 1 {
		t.Fatalf("expected at most one call in flight, saw %d", got)
	}
	assertNoStagedFiles(t, store)
}

func TestInvokeGivesUpWaitingForSlot(t *testing.T) {
	store := newTestStore(t)
	client := &blockingClient{release: make(chan struct{})}
	invoker := NewInvoker(store, client, "m", 1, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = invoker.Invoke(context.Background(), "holder", Image{Format: FormatPNG, Data: pngBytes}, "Q?")
	}()
	for client.inFlight.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := invoker.Invoke(ctx, "waiter", Image{Format: FormatPNG, Data: pngBytes}, "Q?")
	if got := AsFailure(err); got == nil || got.Kind != FailureTimeout {
		t.Fatalf("expected timeout failure, got %v", err)
	}

	client.release <- struct{}{}
	<-done
	assertNoStagedFiles(t, store)
}
