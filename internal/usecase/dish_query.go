package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/dish-advisor/internal/logging"
)

// OutcomeStatus is the single terminal state of one interaction.
type OutcomeStatus string

const (
	OutcomeAnswered OutcomeStatus = "answered"
	OutcomeGuidance OutcomeStatus = "guidance"
	OutcomeFailed   OutcomeStatus = "failed"
)

// Outcome is everything the presenter needs to render one interaction.
type Outcome struct {
	InteractionID string
	Status        OutcomeStatus
	Input         InputState
	Image         Image
	Question      string
	Answer        string
	Failure       *Failure
	Latency       time.Duration
}

// DishQueryUseCase runs the collect, invoke and render-ready pipeline for one
// uploaded dish photo and question.
type DishQueryUseCase struct {
	invoker *Invoker
	metrics *Metrics
	logger  *zap.Logger
	newID   func() string
}

// NewDishQueryUseCase constructs a new use case instance.
func NewDishQueryUseCase(invoker *Invoker, logger *zap.Logger) *DishQueryUseCase {
	return &DishQueryUseCase{
		invoker: invoker,
		metrics: NewMetrics(),
		logger:  logger.Named("dish_query_usecase"),
		newID:   uuid.NewString,
	}
}

// Ask runs one interaction from scratch. Failures are reported in the Outcome;
// no state is kept between calls apart from counters.
func (uc *DishQueryUseCase) Ask(ctx context.Context, upload *Upload, question string) Outcome {
	interactionID := uc.newID()
	opLogger := logging.WithOperation(uc.logger, "usecase.ask", interactionID)

	input := CollectInput(upload, question)
	outcome := Outcome{
		InteractionID: interactionID,
		Input:         input.State,
		Image:         input.Image,
		Question:      input.Question,
	}

	if input.State != InputReady {
		outcome.Status = OutcomeGuidance
		uc.metrics.RecordGuidance()
		fields := []zap.Field{zap.Stringer("input", input.State)}
		if upload != nil {
			fields = append(fields,
				zap.String("filename", upload.Filename),
				zap.String("declared_content_type", upload.ContentType),
				zap.Int("size", len(upload.Data)))
		}
		opLogger.Info("input incomplete", fields...)
		return outcome
	}

	start := time.Now()
	answer, err := uc.invoker.Invoke(ctx, interactionID, input.Image, input.Question)
	outcome.Latency = time.Since(start)

	if err != nil {
		outcome.Status = OutcomeFailed
		outcome.Failure = AsFailure(err)
		uc.metrics.RecordFailure(outcome.Failure.Kind, outcome.Latency)
		opLogger.Info("interaction failed",
			zap.String("kind", string(outcome.Failure.Kind)),
			zap.Duration("latency", outcome.Latency))
		return outcome
	}

	outcome.Status = OutcomeAnswered
	outcome.Answer = answer
	uc.metrics.RecordAnswer(outcome.Latency)
	opLogger.Info("interaction answered",
		zap.String("format", string(input.Image.Format)),
		zap.Int("image_bytes", len(input.Image.Data)),
		zap.Int("answer_chars", len(answer)),
		zap.Duration("latency", outcome.Latency))
	return outcome
}

// GetMetricsSummary returns counters for every interaction served so far.
func (uc *DishQueryUseCase) GetMetricsSummary() MetricsSummary {
	return uc.metrics.Summary()
}
