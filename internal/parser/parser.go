// Package parser turns incremental and final upstream LLM responses from the
// three supported protocol dialects into a stream accumulator.
package parser

import (
	"strings"

	"github.com/capturellm/captureproxy/internal/sharegpt"
)

// Vendor selects the upstream protocol dialect.
type Vendor int

const (
	VendorOpenAI Vendor = iota
	VendorAnthropic
	VendorGoogle
)

// FromAuthType maps a configured auth type onto a Vendor. Unknown values
// fall back to the OpenAI dialect, matching request dispatch.
func FromAuthType(authType string) Vendor {
	switch authType {
	case "anthropic":
		return VendorAnthropic
	case "google":
		return VendorGoogle
	default:
		return VendorOpenAI
	}
}

func (v Vendor) String() string {
	switch v {
	case VendorAnthropic:
		return "anthropic"
	case VendorGoogle:
		return "google"
	default:
		return "openai"
	}
}

// pendingToolCall is an Anthropic tool_use block being assembled across
// content_block events.
type pendingToolCall struct {
	id        string
	name      string
	inputJSON strings.Builder
}

// Accumulator collects parsed fields from one upstream response. It is owned
// by the request handler and never shared across goroutines.
type Accumulator struct {
	ResponseID string
	StopReason string

	visible   strings.Builder
	reasoning strings.Builder
	pending   *pendingToolCall

	// ToolCalls are completed Anthropic tool_use blocks in arrival order.
	ToolCalls []sharegpt.ToolCall
}

// Visible returns the user-visible response text accumulated so far.
func (a *Accumulator) Visible() string { return a.visible.String() }

// Reasoning returns the accumulated reasoning trace.
func (a *Accumulator) Reasoning() string { return a.reasoning.String() }

// HasContent reports whether anything worth persisting was observed.
func (a *Accumulator) HasContent() bool {
	return a.visible.Len() > 0 || a.reasoning.Len() > 0 || len(a.ToolCalls) > 0
}

// FinalText composes the archived response text: a reasoning trace is
// spliced in as a <think> block, and completed tool calls are annotated
// inline when visible text exists. With no visible text the tool calls stay
// on the accumulator for the normalizer to emit directly.
func (a *Accumulator) FinalText() string {
	text := a.visible.String()
	if a.reasoning.Len() > 0 {
		text = "<think>\n" + a.reasoning.String() + "\n</think>\n\n" + text
	}
	if len(a.ToolCalls) > 0 && strings.TrimSpace(a.visible.String()) != "" {
		text += "\n" + sharegpt.ToolCallMarker + " " + marshalToolCalls(a.ToolCalls) + "]"
	}
	return text
}

// DirectToolCalls returns the tool calls the normalizer must emit itself:
// only the function-call-only case, where no visible text carries a marker.
func (a *Accumulator) DirectToolCalls() []sharegpt.ToolCall {
	if strings.TrimSpace(a.visible.String()) == "" {
		return a.ToolCalls
	}
	return nil
}

// ParseIncremental feeds one line of a streamed response into the
// accumulator. Malformed chunks are dropped; the stream continues.
func (v Vendor) ParseIncremental(line string, acc *Accumulator) {
	switch v {
	case VendorAnthropic:
		parseAnthropicLine(line, acc)
	case VendorGoogle:
		parseGoogleLine(line, acc)
	default:
		parseOpenAILine(line, acc)
	}
}

// ParseFinal feeds a complete non-streaming response body into the
// accumulator.
func (v Vendor) ParseFinal(body []byte, acc *Accumulator) {
	switch v {
	case VendorAnthropic:
		parseAnthropicFinal(body, acc)
	case VendorGoogle:
		parseGoogleFinal(body, acc)
	default:
		parseOpenAIFinal(body, acc)
	}
}
