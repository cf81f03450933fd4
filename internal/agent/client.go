package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// Request is one action invocation with its free-form parameters.
type Request struct {
	Action    Action
	Params    map[string]any
	RequestID string
}

// Client maps actions onto remote functions and decodes typed results.
type Client struct {
	invoker Invoker
}

// NewClient wraps an invoker.
func NewClient(invoker Invoker) *Client {
	return &Client{invoker: invoker}
}

// Invoke runs one action.
func (c *Client) Invoke(ctx context.Context, req Request) (Result, error) {
	if !req.Action.Valid() {
		return nil, fmt.Errorf("unsupported agent action %q", req.Action)
	}

	payload := make(map[string]any, len(req.Params)+1)
	for key, value := range req.Params {
		payload[key] = value
	}
	function := req.Action.Function()
	if function == FunctionSponsorAgent {
		payload["action"] = string(req.Action)
	}

	started := time.Now()
	data, err := c.invoker.Invoke(ctx, function, payload, req.RequestID)
	log.Printf("agent: action=%s function=%s duration=%s ok=%t", req.Action, function, time.Since(started).Round(time.Millisecond), err == nil)
	if err != nil {
		return nil, err
	}

	result, err := decodeResult(req.Action, data)
	if err != nil {
		return nil, &Error{Function: function, Message: err.Error()}
	}
	return result, nil
}

func decodeResult(action Action, data json.RawMessage) (Result, error) {
	switch action {
	case ActionScoreLead:
		return decodeAs[LeadScore](action, data)
	case ActionBrandStory:
		return decodeAs[BrandStory](action, data)
	case ActionDraftPitch:
		return decodeAs[Pitch](action, data)
	case ActionSocialPlan:
		return decodeAs[SocialPlan](action, data)
	case ActionDraftContract:
		return decodeAs[ContractDraft](action, data)
	case ActionAnalyzeMedia:
		return decodeAs[MediaAnalysis](action, data)
	case ActionROIReport:
		return decodeAs[ROIReport](action, data)
	case ActionGenerateEventDraft:
		return decodeAs[EventDraft](action, data)
	case ActionGenerateMoodboard:
		return decodeAs[Moodboard](action, data)
	}
	return nil, fmt.Errorf("unsupported agent action %q", action)
}

func decodeAs[T Result](action Action, data json.RawMessage) (Result, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", action, err)
	}
	return out, nil
}
