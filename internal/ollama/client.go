package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/example/dish-advisor/internal/inference"
	"github.com/example/dish-advisor/internal/logging"
)

const (
	chatPath    = "/api/chat"
	versionPath = "/api/version"

	// maxErrorBody caps how much of a failed response body ends up in errors and logs.
	maxErrorBody = 512
)

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to an Ollama-compatible /api/chat endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ inference.Client = (*Client)(nil)

func New(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger.Named("ollama"),
	}
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// chatResponse covers every reply shape seen from the service: the native chat
// reply, the generate reply and a plain {"text": ...} envelope.
type chatResponse struct {
	Model   string `json:"model"`
	Message *struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Text     *string `json:"text"`
	Response *string `json:"response"`
	Error    string  `json:"error"`
}

// Chat sends one non-streaming chat request. Image paths in the request are read
// and base64 encoded here, at the wire boundary.
func (c *Client) Chat(ctx context.Context, req inference.ChatRequest) (*inference.ChatResponse, error) {
	payload, err := encodeChatRequest(req)
	if err != nil {
		return nil, logging.NewOperationError("ollama.encode_request", "", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(payload))
	if err != nil {
		return nil, logging.NewOperationError("ollama.build_request", "", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug("chat request failed", zap.Error(err), zap.String("model", req.Model))
		return nil, logging.NewOperationError("ollama.chat", "", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, logging.NewOperationError("ollama.read_response", "", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		statusErr := &inference.StatusError{
			StatusCode: httpResp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(rawBody)), maxErrorBody),
		}
		c.logger.Debug("chat returned non-2xx", zap.Int("status", httpResp.StatusCode), zap.String("model", req.Model))
		return nil, logging.NewOperationError("ollama.chat", "", statusErr)
	}

	model, text, err := extractText(httpResp.Header.Get("Content-Type"), rawBody)
	if err != nil {
		return nil, logging.NewOperationError("ollama.decode_response", "", err)
	}
	if model == "" {
		model = req.Model
	}
	return &inference.ChatResponse{Model: model, Text: text}, nil
}

// Ping checks that the service is reachable.
func (c *Client) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+versionPath, nil)
	if err != nil {
		return logging.NewOperationError("ollama.ping", "", err)
	}
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return logging.NewOperationError("ollama.ping", "", err)
	}
	defer httpResp.Body.Close()
	_, _ = io.Copy(io.Discard, httpResp.Body)

	if httpResp.StatusCode != http.StatusOK {
		return logging.NewOperationError("ollama.ping", "", &inference.StatusError{StatusCode: httpResp.StatusCode})
	}
	return nil
}

func encodeChatRequest(req inference.ChatRequest) ([]byte, error) {
	out := chatRequest{
		Model:    req.Model,
		Messages: make([]chatMessage, 0, len(req.Messages)),
		Stream:   false,
	}
	for _, msg := range req.Messages {
		encoded := chatMessage{Role: msg.Role, Content: msg.Content}
		for _, path := range msg.Images {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read image: %w", err)
			}
			encoded.Images = append(encoded.Images, base64.StdEncoding.EncodeToString(data))
		}
		out.Messages = append(out.Messages, encoded)
	}
	return json.Marshal(out)
}

// extractText normalises the reply to a single string. Structured replies, bare
// JSON strings and text/plain bodies are all accepted.
func extractText(contentType string, body []byte) (string, string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", "", inference.ErrEmptyResponse
	}

	var model, text string
	switch trimmed[0] {
	case '"':
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return "", "", fmt.Errorf("%w: %v", inference.ErrMalformedResponse, err)
		}
	case '{':
		var decoded chatResponse
		if err := json.Unmarshal(trimmed, &decoded); err != nil {
			return "", "", fmt.Errorf("%w: %v", inference.ErrMalformedResponse, err)
		}
		if decoded.Error != "" {
			return "", "", fmt.Errorf("%w: service reported %q", inference.ErrMalformedResponse, decoded.Error)
		}
		model = decoded.Model
		switch {
		case decoded.Message != nil:
			text = decoded.Message.Content
		case decoded.Text != nil:
			text = *decoded.Text
		case decoded.Response != nil:
			text = *decoded.Response
		default:
			return "", "", fmt.Errorf("%w: no text field in reply", inference.ErrMalformedResponse)
		}
	default:
		if !isPlainText(contentType) {
			return "", "", fmt.Errorf("%w: unexpected content type %q", inference.ErrMalformedResponse, contentType)
		}
		text = string(trimmed)
	}

	if strings.TrimSpace(text) == "" {
		return "", "", inference.ErrEmptyResponse
	}
	return model, text, nil
}

func isPlainText(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/plain"
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + "..."
}
