package usecase

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/example/dish-advisor/internal/inference"
	"github.com/example/dish-advisor/internal/logging"
)

// Stager holds an image on disk for the duration of one inference call.
type Stager interface {
	Write(interactionID, ext string, data []byte) (string, error)
	Remove(path string) error
}

// Invoker stages the image, calls the inference service once and releases the
// staged file on every exit path.
type Invoker struct {
	stager Stager
	client inference.Client
	model  string
	slots  *semaphore.Weighted
	logger *zap.Logger
}

// NewInvoker constructs an invoker. maxConcurrent bounds how many inference
// calls may be in flight at once; values below 1 serialise calls.
func NewInvoker(stager Stager, client inference.Client, model string, maxConcurrent int, logger *zap.Logger) *Invoker {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Invoker{
		stager: stager,
		client: client,
		model:  model,
		slots:  semaphore.NewWeighted(int64(maxConcurrent)),
		logger: logger.Named("invoker"),
	}
}

// Invoke returns the answer text or a *Failure. It never retries.
func (i *Invoker) Invoke(ctx context.Context, interactionID string, image Image, question string) (answer string, err error) {
	opLogger := logging.WithOperation(i.logger, "invoker.invoke", interactionID)

	defer func() {
		if r := recover(); r != nil {
			opLogger.Error("inference call panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			answer = ""
			err = &Failure{
				Kind: FailureUnclassified,
				Err:  logging.NewOperationError("invoker.chat", interactionID, fmt.Errorf("panic: %v", r)),
			}
		}
	}()

	if err := i.slots.Acquire(ctx, 1); err != nil {
		wrapped := logging.NewOperationError("invoker.acquire_slot", interactionID, err)
		opLogger.Warn("gave up waiting for an inference slot", zap.Error(wrapped))
		return "", &Failure{Kind: Classify(err), Err: wrapped}
	}
	defer i.slots.Release(1)

	path, err := i.stager.Write(interactionID, image.Format.Extension(), image.Data)
	if err != nil {
		wrapped := logging.NewOperationError("invoker.stage_image", interactionID, err)
		opLogger.Error("failed to stage image", zap.Error(wrapped))
		return "", &Failure{Kind: FailureStorage, Err: wrapped}
	}
	defer func() {
		if rmErr := i.stager.Remove(path); rmErr != nil {
			// the answer, if any, is still delivered
			opLogger.Warn("failed to remove staged image",
				zap.Error(logging.NewOperationError("invoker.release_image", interactionID, rmErr)),
				zap.String("path", path))
		}
	}()

	resp, err := i.client.Chat(ctx, inference.ChatRequest{
		Model: i.model,
		Messages: []inference.Message{{
			Role:    inference.RoleUser,
			Content: question,
			Images:  []string{path},
		}},
	})
	if err != nil {
		wrapped := logging.NewOperationError("invoker.chat", interactionID, err)
		kind := Classify(err)
		opLogger.Error("inference call failed", zap.Error(wrapped), zap.String("kind", string(kind)))
		return "", &Failure{Kind: kind, Err: wrapped}
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		wrapped := logging.NewOperationError("invoker.chat", interactionID, inference.ErrEmptyResponse)
		opLogger.Warn("inference returned no text", zap.Error(wrapped))
		return "", &Failure{Kind: FailureEmptyResponse, Err: wrapped}
	}

	return resp.Text, nil
}
