package mcp

import (
	"context"
	"runtime/debug"
)

// SamplingMessage is one message in a sampling/createMessage exchange.
type SamplingMessage struct {
	Role    string      `json:"role"`
	Content ContentList `json:"content"`
}

// ModelHint names a model family or identifier a client may prefer.
type ModelHint struct {
	Name string `json:"name,omitempty"`
}

// ModelPreferences expresses the server's soft preferences for model
// selection; the client is free to ignore any or all of it.
type ModelPreferences struct {
	Hints                []ModelHint `json:"hints,omitempty"`
	CostPriority         *float64    `json:"costPriority,omitempty"`
	SpeedPriority        *float64    `json:"speedPriority,omitempty"`
	IntelligencePriority *float64    `json:"intelligencePriority,omitempty"`
}

// CreateMessageParams is the params of sampling/createMessage.
type CreateMessageParams struct {
	Messages         []SamplingMessage `json:"messages"`
	ModelPreferences *ModelPreferences `json:"modelPreferences,omitempty"`
	SystemPrompt     *string           `json:"systemPrompt,omitempty"`
	MaxTokens        int               `json:"maxTokens,omitempty" validate:"gte=0"`
}

// CreateMessageResult is the result of sampling/createMessage.
type CreateMessageResult struct {
	Role       string   `json:"role"`
	Content    Content  `json:"content"`
	Model      string   `json:"model"`
	StopReason *string  `json:"stopReason,omitempty"`
}

// ElicitAction is the user's response to an elicitation/create request.
type ElicitAction string

const (
	ElicitActionAccept  ElicitAction = "accept"
	ElicitActionReject  ElicitAction = "reject"
	ElicitActionCancel  ElicitAction = "cancel"
)

// ElicitParams is the params of elicitation/create.
type ElicitParams struct {
	Message         string            `json:"message"`
	RequestedSchema map[string]any    `json:"requestedSchema"`
}

// ElicitResult is the result of elicitation/create.
type ElicitResult struct {
	Action  ElicitAction   `json:"action"`
	Content map[string]any `json:"content,omitempty"`
}

// CreateMessageHandlerFunc answers a server-initiated sampling request.
type CreateMessageHandlerFunc func(ctx context.Context, params CreateMessageParams) (CreateMessageResult, error)

// ElicitHandlerFunc answers a server-initiated elicitation request.
type ElicitHandlerFunc func(ctx context.Context, params ElicitParams) (ElicitResult, error)

// handleTypedRequest unmarshals req.Params into P, validates it,
// invokes fn with panic recovery, and marshals its result. Any module
// that needs to expose a typed request/response pair as a JSON-RPC
// handler can share this instead of writing its own unmarshal/recover
// boilerplate.
func handleTypedRequest[P any, R any](ctx context.Context, diag DiagLogger, req Request, fn func(context.Context, P) (R, error)) (resp Response, err error) {
	var params P
	if len(req.Params) > 0 {
		if err := wireJSON.Unmarshal(req.Params, &params); err != nil {
			return Response{}, NewArgumentError("invalid request params", err)
		}
		if err := validateStruct(params); err != nil {
			return Response{}, err
		}
	}

	defer func() {
		if r := recover(); r != nil {
			diag.Printf("mcp: request handler panicked: %v\n%s", r, debug.Stack())
			err = NewStateError("request handler panicked")
		}
	}()

	result, callErr := fn(ctx, params)
	if callErr != nil {
		return Response{}, callErr
	}

	data, marshalErr := wireJSON.Marshal(result)
	if marshalErr != nil {
		return Response{}, marshalErr
	}
	return Response{Result: data}, nil
}

// handleCreateMessageRequest is the Client's registered handler for
// sampling/createMessage. If no handler was installed via
// OnCreateMessage, the request fails with MethodNotFound (returned here
// as an error Response with a nil Go error, so the transport's default
// internal-error mapping does not replace its code).
func (c *Client) handleCreateMessageRequest(ctx context.Context, req Request) (Response, error) {
	c.samplingMu.RLock()
	fn := c.onCreateMessage
	c.samplingMu.RUnlock()
	if fn == nil {
		return Response{
			JSONRPC: jsonrpcVersion,
			ID:      req.ID,
			Error: &Error{
				Code:    ErrCodeMethodNotFound,
				Message: "client does not support sampling/createMessage",
			},
		}, nil
	}
	return handleTypedRequest(ctx, c.peer.diag, req, fn)
}

// handleElicitRequest is the Client's registered handler for
// elicitation/create.
func (c *Client) handleElicitRequest(ctx context.Context, req Request) (Response, error) {
	c.samplingMu.RLock()
	fn := c.onElicit
	c.samplingMu.RUnlock()
	if fn == nil {
		return Response{
			JSONRPC: jsonrpcVersion,
			ID:      req.ID,
			Error: &Error{
				Code:    ErrCodeMethodNotFound,
				Message: "client does not support elicitation/create",
			},
		}, nil
	}
	return handleTypedRequest(ctx, c.peer.diag, req, fn)
}
