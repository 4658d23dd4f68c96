package processors

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"videoAnalyze/config"
	"videoAnalyze/core"
)

// NemotronClient performs single chat-completion calls (vision or text-only)
// against an OpenAI-compatible endpoint and owns per-call retry with
// exponential backoff. Rate limits and transport failures are retried;
// well-formed API errors are not.
type NemotronClient struct {
	cli *openai.Client
	cfg *config.Config

	maxRetries int
	baseDelay  time.Duration
	timeout    time.Duration
}

func NewNemotronClient(cfg *config.Config) *NemotronClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &NemotronClient{
		cli:        openai.NewClientWithConfig(clientConfig),
		cfg:        cfg,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseRetryDelay(),
		timeout:    cfg.RequestTimeout(),
	}
}

// CheckAuth reports whether a credential is configured at all. Called before
// any work is scheduled so a missing key fails the pipeline up front instead
// of burning retries on every segment.
func (n *NemotronClient) CheckAuth() error {
	if strings.TrimSpace(n.cfg.APIKey) == "" {
		return core.ErrAPIKeyMissing
	}
	return nil
}

// DescribeFrames sends up to MaxImagesPerRequest base64 JPEG frames plus a
// prompt to the vision model and returns the text of the first choice.
func (n *NemotronClient) DescribeFrames(ctx context.Context, framesB64 []string, prompt string) (string, error) {
	if err := n.CheckAuth(); err != nil {
		return "", err
	}

	if limit := n.cfg.MaxImagesPerRequest; limit > 0 && len(framesB64) > limit {
		framesB64 = framesB64[:limit]
	}

	content := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: prompt},
	}
	for _, b64 := range framesB64 {
		content = append(content, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: "data:image/jpeg;base64," + b64,
			},
		})
	}

	req := openai.ChatCompletionRequest{
		Model: n.cfg.VisionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "/think"},
			{Role: openai.ChatMessageRoleUser, MultiContent: content},
		},
		MaxTokens:   1024,
		Temperature: 0.2,
		TopP:        0.7,
	}
	return n.completeWithRetry(ctx, req)
}

// TextCompletion sends a text-only request to the chat model.
func (n *NemotronClient) TextCompletion(ctx context.Context, prompt, system string, maxTokens int) (string, error) {
	if err := n.CheckAuth(); err != nil {
		return "", err
	}
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	req := openai.ChatCompletionRequest{
		Model:       n.cfg.ChatModel,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: 0.2,
		TopP:        0.7,
	}
	return n.completeWithRetry(ctx, req)
}

// ChatWithContext answers a question grounded in the assembled video context
// plus any rolling chat history.
func (n *NemotronClient) ChatWithContext(ctx context.Context, contextBlock, question string, history []openai.ChatCompletionMessage) (string, error) {
	if err := n.CheckAuth(); err != nil {
		return "", err
	}

	system := "You are a video analysis assistant. " +
		"You have access to a complete analysis of a video including its transcript, " +
		"visual descriptions, and auto-generated chapters.\n\n" +
		"IMPORTANT GUIDELINES:\n" +
		"- Answer questions accurately based on the video context below.\n" +
		"- ALWAYS reference specific timestamps in MM:SS format when mentioning " +
		"video content (e.g., 'At 03:15, the speaker explains...').\n" +
		"- If multiple moments are relevant, list each with its timestamp.\n" +
		"- Be concise but thorough. Quote the transcript when helpful.\n\n" +
		"=== VIDEO ANALYSIS ===\n" + contextBlock

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	messages = append(messages, history...)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: question})

	req := openai.ChatCompletionRequest{
		Model:       n.cfg.ChatModel,
		Messages:    messages,
		MaxTokens:   1024,
		Temperature: 0.2,
		TopP:        0.7,
	}
	return n.completeWithRetry(ctx, req)
}

// completeWithRetry issues one chat completion, retrying rate limits and
// transport failures up to MaxRetries additional attempts with delays of
// base, 2*base, 4*base... Fatal API errors are returned as-is.
func (n *NemotronClient) completeWithRetry(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		resp, err := n.complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !retryable(err) {
			return "", err
		}
		lastErr = err

		if attempt == n.maxRetries {
			break
		}
		delay := n.baseDelay * (1 << attempt)
		log.Printf("attempt %d/%d failed (%v), retrying in %v", attempt+1, n.maxRetries+1, err, delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", &core.RetryExhaustedError{Attempts: n.maxRetries + 1, Last: lastErr}
}

func (n *NemotronClient) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	resp, err := n.cli.CreateChatCompletion(callCtx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		// A 2xx body can carry an error object instead of choices; the
		// library surfaces that as an empty response.
		return "", &core.RemoteError{Message: "no choices in response"}
	}
	return resp.Choices[0].Message.Content, nil
}

// retryable classifies a failed attempt. A 429 is the endpoint shedding
// load; transport-level failures (timeout, reset) are assumed transient.
// Any other well-formed API error (bad request, content policy) is fatal.
func retryable(err error) bool {
	if errors.Is(err, core.ErrAPIKeyMissing) {
		return false
	}

	var remoteErr *core.RemoteError
	if errors.As(err, &remoteErr) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}

	// No structured error payload: timeout, connection refused/reset, etc.
	return true
}
