package handlers

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/dish-advisor/internal/presenter"
	"github.com/example/dish-advisor/internal/usecase"
)

// MaxUploadSize is the default image size limit.
const MaxUploadSize = 10 << 20

// formOverhead is the slack allowed on top of the image for the question field
// and multipart framing.
const formOverhead = 1 << 20

//go:embed templates/*.tmpl
var templateFS embed.FS

// DishQuerier runs one interaction.
type DishQuerier interface {
	Ask(ctx context.Context, upload *usecase.Upload, question string) usecase.Outcome
	GetMetricsSummary() usecase.MetricsSummary
}

// ReadinessChecker reports whether the inference service can be reached.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Title            string
	ShowErrorDetails bool
	MaxUploadBytes   int64
	Readiness        ReadinessChecker
}

type pageData struct {
	Title     string
	MaxUpload string
	Question  string
	View      *presenter.View
}

type askResponse struct {
	InteractionID string `json:"interaction_id,omitempty"`
	Status        string `json:"status"`
	Input         string `json:"input,omitempty"`
	Kind          string `json:"kind,omitempty"`
	Title         string `json:"title,omitempty"`
	Message       string `json:"message"`
	Answer        string `json:"answer,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

type handler struct {
	uc   DishQuerier
	opts Options
}

// RegisterRoutes wires the page, the JSON API and the probes to the Gin router.
func RegisterRoutes(router *gin.Engine, uc DishQuerier, opts Options) {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = MaxUploadSize
	}
	if opts.Title == "" {
		opts.Title = "Nutritional Advisor"
	}
	h := &handler{uc: uc, opts: opts}

	router.SetHTMLTemplate(template.Must(template.New("").ParseFS(templateFS, "templates/*.tmpl")))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", h.ready)
	router.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, uc.GetMetricsSummary())
	})

	router.GET("/", h.page)
	router.POST("/", h.askPage)
	router.POST("/api/ask", h.askAPI)
}

func (h *handler) page(c *gin.Context) {
	c.HTML(http.StatusOK, "index.tmpl", h.pageData("", nil))
}

func (h *handler) askPage(c *gin.Context) {
	upload, status := h.readUpload(c)
	if status != 0 {
		// the form is not read again once the upload is refused
		view := presenter.PresentUploadRejected(status, h.opts.MaxUploadBytes)
		c.HTML(view.Status, "index.tmpl", h.pageData("", &view))
		return
	}

	outcome := h.uc.Ask(c.Request.Context(), upload, c.PostForm("question"))
	view := presenter.Present(outcome, presenter.Options{ShowErrorDetails: h.opts.ShowErrorDetails})

	// the page itself is fine when it only asks for more input
	code := view.Status
	if outcome.Status == usecase.OutcomeGuidance {
		code = http.StatusOK
	}
	c.HTML(code, "index.tmpl", h.pageData(outcome.Question, &view))
}

func (h *handler) askAPI(c *gin.Context) {
	upload, status := h.readUpload(c)
	if status != 0 {
		view := presenter.PresentUploadRejected(status, h.opts.MaxUploadBytes)
		c.JSON(view.Status, askResponse{Status: "rejected", Message: view.Message})
		return
	}

	outcome := h.uc.Ask(c.Request.Context(), upload, c.PostForm("question"))
	view := presenter.Present(outcome, presenter.Options{ShowErrorDetails: h.opts.ShowErrorDetails})

	resp := askResponse{
		InteractionID: outcome.InteractionID,
		Status:        string(outcome.Status),
		Title:         view.Title,
		Message:       view.Message,
		Detail:        view.Detail,
		Kind:          string(view.FailureKind),
	}
	switch outcome.Status {
	case usecase.OutcomeAnswered:
		resp.Answer = outcome.Answer
	case usecase.OutcomeGuidance:
		resp.Input = outcome.Input.String()
	}
	c.JSON(view.Status, resp)
}

func (h *handler) ready(c *gin.Context) {
	if h.opts.Readiness == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.opts.Readiness.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "inference service unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// readUpload returns the uploaded image, or nil when none was sent. A non-zero
// status means the upload was refused.
func (h *handler) readUpload(c *gin.Context) (*usecase.Upload, int) {
	limit := h.opts.MaxUploadBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+formOverhead)
	if c.Request.ContentLength > limit+formOverhead {
		return nil, http.StatusRequestEntityTooLarge
	}

	file, err := c.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return nil, http.StatusRequestEntityTooLarge
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			return nil, 0
		default:
			return nil, http.StatusBadRequest
		}
	}
	if file.Size > limit {
		return nil, http.StatusRequestEntityTooLarge
	}

	src, err := file.Open()
	if err != nil {
		return nil, http.StatusBadRequest
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return nil, http.StatusBadRequest
	}
	if int64(len(data)) > limit {
		return nil, http.StatusRequestEntityTooLarge
	}

	return &usecase.Upload{
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Data:        data,
	}, 0
}

func (h *handler) pageData(question string, view *presenter.View) pageData {
	return pageData{
		Title:     h.opts.Title,
		MaxUpload: presenter.HumanBytes(h.opts.MaxUploadBytes),
		Question:  question,
		View:      view,
	}
}
