package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "datachat/errors"
	"datachat/filter"
	"datachat/prompts"
	"datachat/web/types"

	"go.uber.org/zap"
)

// Request carries everything a transport needs to produce one streamed
// response.
type Request struct {
	Message string
	History []types.AgentMessage
	Dataset *filter.ActiveDataset
	Model   string
}

// Transport streams a model response. Chunks arrive in emission order and
// their concatenation equals the full response text seen so far; after the
// last chunk exactly one of onDone or onError fires. A context cancellation
// surfaces through onError as ErrStreamCancelled, which callers must not
// present as a failure.
type Transport interface {
	Stream(ctx context.Context, req Request, onChunk func(string), onDone func(), onError func(error))
}

// HTTPTransport talks to an OpenAI-compatible chat completion endpoint.
type HTTPTransport struct {
	host   string
	client *http.Client
	logger *zap.Logger
}

func NewHTTPTransport(host string, timeout time.Duration, logger *zap.Logger) *HTTPTransport {
	return &HTTPTransport{
		host:   strings.TrimRight(host, "/"),
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type completionRequest struct {
	Model    string               `json:"model"`
	Messages []types.AgentMessage `json:"messages"`
	Stream   bool                 `json:"stream"`
}

type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Stream posts the chat completion request and forwards delta chunks in
// order. The dataset descriptor is prepended as a system message so the
// model knows which data slice the conversation is about.
func (t *HTTPTransport) Stream(ctx context.Context, req Request, onChunk func(string), onDone func(), onError func(error)) {
	messages := make([]types.AgentMessage, 0, len(req.History)+3)
	messages = append(messages, types.AgentMessage{Role: "system", Content: prompts.AnalystSystem()})
	if req.Dataset != nil {
		descriptor, err := json.Marshal(req.Dataset)
		if err == nil {
			messages = append(messages, types.AgentMessage{
				Role:    "system",
				Content: prompts.DatasetContext(string(descriptor)),
			})
		}
	}
	messages = append(messages, req.History...)
	messages = append(messages, types.AgentMessage{Role: "user", Content: req.Message})

	body, err := json.Marshal(completionRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		onError(apperrors.WrapError(apperrors.ErrLLMCommunication, err.Error()))
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.host+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		onError(apperrors.WrapError(apperrors.ErrLLMCommunication, err.Error()))
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			onError(apperrors.ErrStreamCancelled)
			return
		}
		onError(apperrors.WrapError(apperrors.ErrLLMCommunication, err.Error()))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		onError(apperrors.WrapErrorf(apperrors.ErrLLMCommunication, "llm host returned %d", resp.StatusCode))
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			onDone()
			return
		}
		var chunk completionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			t.logger.Debug("Skipping unparseable stream chunk", zap.String("payload", payload))
			continue
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				onChunk(choice.Delta.Content)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			onError(apperrors.ErrStreamCancelled)
			return
		}
		onError(apperrors.WrapError(apperrors.ErrLLMCommunication, fmt.Sprintf("reading stream: %v", err)))
		return
	}
	onDone()
}
