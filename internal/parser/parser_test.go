package parser

import (
	"strings"
	"testing"
)

func TestFromAuthType(t *testing.T) {
	cases := []struct {
		authType string
		want     Vendor
	}{
		{"openai", VendorOpenAI},
		{"anthropic", VendorAnthropic},
		{"google", VendorGoogle},
		{"", VendorOpenAI},
		{"mystery", VendorOpenAI},
	}
	for _, tc := range cases {
		if got := FromAuthType(tc.authType); got != tc.want {
			t.Errorf("FromAuthType(%q) = %v, want %v", tc.authType, got, tc.want)
		}
	}
}

func TestOpenAIStream(t *testing.T) {
	lines := []string{
		`data: {"id":"chatcmpl-123","choices":[{"delta":{"role":"assistant"}}]}`,
		`data: {"id":"chatcmpl-123","choices":[{"delta":{"content":"Hello"}}]}`,
		`data: {"id":"chatcmpl-123","choices":[{"delta":{"content":", world"}}]}`,
		`not an sse line`,
		`data: {broken json`,
		`data: [DONE]`,
	}

	acc := &Accumulator{}
	for _, line := range lines {
		VendorOpenAI.ParseIncremental(line, acc)
	}

	if acc.ResponseID != "chatcmpl-123" {
		t.Errorf("ResponseID = %q, want chatcmpl-123", acc.ResponseID)
	}
	if acc.Visible() != "Hello, world" {
		t.Errorf("Visible() = %q, want %q", acc.Visible(), "Hello, world")
	}
	if !acc.HasContent() {
		t.Error("HasContent() = false after content deltas")
	}
}

func TestOpenAIStreamReasoning(t *testing.T) {
	lines := []string{
		`data: {"id":"chatcmpl-9","choices":[{"delta":{"reasoning_content":"thinking "}}]}`,
		`data: {"id":"chatcmpl-9","choices":[{"delta":{"reasoning_content":"hard"}}]}`,
		`data: {"id":"chatcmpl-9","choices":[{"delta":{"content":"42"}}]}`,
		`data: [DONE]`,
	}

	acc := &Accumulator{}
	for _, line := range lines {
		VendorOpenAI.ParseIncremental(line, acc)
	}

	if acc.Reasoning() != "thinking hard" {
		t.Errorf("Reasoning() = %q, want %q", acc.Reasoning(), "thinking hard")
	}
	want := "<think>\nthinking hard\n</think>\n\n42"
	if got := acc.FinalText(); got != want {
		t.Errorf("FinalText() = %q, want %q", got, want)
	}
}

func TestOpenAIReasoningShapes(t *testing.T) {
	cases := []struct {
		name string
		line string
		want string
	}{
		{
			"object with text",
			`data: {"choices":[{"delta":{"reasoning_content":{"text":"abc"}}}]}`,
			"abc",
		},
		{
			"array of strings",
			`data: {"choices":[{"delta":{"reasoning_content":["a","b"]}}]}`,
			"ab",
		},
		{
			"object with parts",
			`data: {"choices":[{"delta":{"reasoning_content":{"parts":[{"text":"x"},{"text":"y"}]}}}]}`,
			"xy",
		},
	}
	for _, tc := range cases {
		acc := &Accumulator{}
		VendorOpenAI.ParseIncremental(tc.line, acc)
		if acc.Reasoning() != tc.want {
			t.Errorf("%s: Reasoning() = %q, want %q", tc.name, acc.Reasoning(), tc.want)
		}
	}
}

func TestOpenAIFinal(t *testing.T) {
	body := []byte(`{"id":"chatcmpl-f","choices":[{"message":{"role":"assistant","content":"final answer"}}]}`)

	acc := &Accumulator{}
	VendorOpenAI.ParseFinal(body, acc)

	if acc.ResponseID != "chatcmpl-f" {
		t.Errorf("ResponseID = %q, want chatcmpl-f", acc.ResponseID)
	}
	if acc.Visible() != "final answer" {
		t.Errorf("Visible() = %q, want %q", acc.Visible(), "final answer")
	}
}

func TestAnthropicStreamText(t *testing.T) {
	lines := []string{
		`data: {"type":"message_start","message":{"id":"msg_01","role":"assistant"}}`,
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"text"}}`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hi"}}`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" there"}}`,
		`data: {"type":"content_block_stop","index":0}`,
		`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"}}`,
	}

	acc := &Accumulator{}
	for _, line := range lines {
		VendorAnthropic.ParseIncremental(line, acc)
	}

	if acc.ResponseID != "msg_01" {
		t.Errorf("ResponseID = %q, want msg_01", acc.ResponseID)
	}
	if acc.Visible() != "Hi there" {
		t.Errorf("Visible() = %q, want %q", acc.Visible(), "Hi there")
	}
	if acc.StopReason != "end_turn" {
		t.Errorf("StopReason = %q, want end_turn", acc.StopReason)
	}
}

func TestAnthropicToolUseAssembly(t *testing.T) {
	lines := []string{
		`data: {"type":"message_start","message":{"id":"msg_02"}}`,
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_01","name":"get_weather"}}`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"city\":"}}`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"\"Paris\"}"}}`,
		`data: {"type":"content_block_stop","index":0}`,
		`data: {"type":"message_delta","delta":{"stop_reason":"tool_use"}}`,
	}

	acc := &Accumulator{}
	for _, line := range lines {
		VendorAnthropic.ParseIncremental(line, acc)
	}

	if len(acc.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(acc.ToolCalls))
	}
	call := acc.ToolCalls[0]
	if call.ID != "toolu_01" || call.Function.Name != "get_weather" {
		t.Errorf("tool call = %+v", call)
	}
	if call.Function.Arguments != `{"city":"Paris"}` {
		t.Errorf("arguments = %q, want %q", call.Function.Arguments, `{"city":"Paris"}`)
	}

	// No visible text, so the calls go out directly rather than via marker.
	if got := acc.DirectToolCalls(); len(got) != 1 {
		t.Errorf("DirectToolCalls() = %v, want the assembled call", got)
	}
}

func TestAnthropicToolUseEmptyInput(t *testing.T) {
	lines := []string{
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_02","name":"list_files"}}`,
		`data: {"type":"content_block_stop","index":0}`,
	}

	acc := &Accumulator{}
	for _, line := range lines {
		VendorAnthropic.ParseIncremental(line, acc)
	}

	if len(acc.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(acc.ToolCalls))
	}
	if acc.ToolCalls[0].Function.Arguments != "{}" {
		t.Errorf("arguments = %q, want {}", acc.ToolCalls[0].Function.Arguments)
	}
}

func TestAnthropicTextWithToolCallMarker(t *testing.T) {
	lines := []string{
		`data: {"type":"message_start","message":{"id":"msg_03"}}`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Checking the weather."}}`,
		`data: {"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_03","name":"get_weather"}}`,
		`data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{}"}}`,
		`data: {"type":"content_block_stop","index":1}`,
	}

	acc := &Accumulator{}
	for _, line := range lines {
		VendorAnthropic.ParseIncremental(line, acc)
	}

	text := acc.FinalText()
	if !strings.HasPrefix(text, "Checking the weather.") {
		t.Errorf("FinalText() = %q, want visible prefix", text)
	}
	if !strings.Contains(text, "[ANTHROPIC_TOOL_CALLS: ") {
		t.Errorf("FinalText() = %q, want inline tool call marker", text)
	}
	if got := acc.DirectToolCalls(); got != nil {
		t.Errorf("DirectToolCalls() = %v, want nil when visible text carries the marker", got)
	}
}

func TestAnthropicFinal(t *testing.T) {
	body := []byte(`{"id":"msg_f","content":[{"type":"text","text":"part one"},{"type":"text","text":" part two"}],"stop_reason":"end_turn"}`)

	acc := &Accumulator{}
	VendorAnthropic.ParseFinal(body, acc)

	if acc.ResponseID != "msg_f" {
		t.Errorf("ResponseID = %q, want msg_f", acc.ResponseID)
	}
	if acc.Visible() != "part one part two" {
		t.Errorf("Visible() = %q", acc.Visible())
	}
}

func TestGoogleStreamChunks(t *testing.T) {
	lines := []string{
		`{"responseId":"resp-1","candidates":[{"content":{"parts":[{"text":"Bonjour"}]}}]}`,
		`data: {"candidates":[{"content":{"parts":[{"text":" le monde"}]}}]}`,
		`,`,
		`]`,
	}

	acc := &Accumulator{}
	for _, line := range lines {
		VendorGoogle.ParseIncremental(line, acc)
	}

	if acc.ResponseID != "resp-1" {
		t.Errorf("ResponseID = %q, want resp-1", acc.ResponseID)
	}
	if acc.Visible() != "Bonjour le monde" {
		t.Errorf("Visible() = %q", acc.Visible())
	}
}

func TestGoogleThinkingParts(t *testing.T) {
	lines := []string{
		`{"candidates":[{"content":{"parts":[{"thought":true,"text":"planning the answer"}]}}]}`,
		`{"candidates":[{"content":{"parts":[{"thinking":{"thought":" carefully"}}]}}]}`,
		`{"candidates":[{"content":{"parts":[{"text":"Done."}]}}]}`,
	}

	acc := &Accumulator{}
	for _, line := range lines {
		VendorGoogle.ParseIncremental(line, acc)
	}

	if acc.Reasoning() != "planning the answer carefully" {
		t.Errorf("Reasoning() = %q", acc.Reasoning())
	}
	if acc.Visible() != "Done." {
		t.Errorf("Visible() = %q", acc.Visible())
	}
}

func TestGoogleShardFallback(t *testing.T) {
	acc := &Accumulator{}
	VendorGoogle.ParseIncremental(`      "text": "recovered fragment",`, acc)
	VendorGoogle.ParseIncremental(`      "responseId": "resp-shard",`, acc)

	if acc.Visible() != "recovered fragment" {
		t.Errorf("Visible() = %q, want shard text", acc.Visible())
	}
	if acc.ResponseID != "resp-shard" {
		t.Errorf("ResponseID = %q, want resp-shard", acc.ResponseID)
	}

	// A shard with a thinking marker must not leak into the visible text.
	acc2 := &Accumulator{}
	VendorGoogle.ParseIncremental(`      "text": "internal thought", "thought": true`, acc2)
	if acc2.Visible() != "" {
		t.Errorf("Visible() = %q, want empty for thought shard", acc2.Visible())
	}
}

func TestGoogleOpenAIEnvelope(t *testing.T) {
	acc := &Accumulator{}
	VendorGoogle.ParseIncremental(`data: {"choices":[{"delta":{"content":"re-framed"}}]}`, acc)
	if acc.Visible() != "re-framed" {
		t.Errorf("Visible() = %q, want re-framed", acc.Visible())
	}
}

func TestGoogleFinal(t *testing.T) {
	body := []byte(`{"responseId":"resp-f","candidates":[{"finishReason":"STOP","content":{"parts":[{"text":"line one"},{"text":"line two"}]}}]}`)

	acc := &Accumulator{}
	VendorGoogle.ParseFinal(body, acc)

	if acc.ResponseID != "resp-f" {
		t.Errorf("ResponseID = %q, want resp-f", acc.ResponseID)
	}
	if acc.Visible() != "line one\nline two" {
		t.Errorf("Visible() = %q", acc.Visible())
	}
}

func TestGoogleFinishReasons(t *testing.T) {
	cases := []struct {
		reason   string
		wantPart string
	}{
		{"MAX_TOKENS", "maximum output token limit"},
		{"SAFETY", "safety filter"},
		{"RECITATION", "recitation"},
		{"OTHER", "generation stopped: OTHER"},
	}
	for _, tc := range cases {
		body := []byte(`{"candidates":[{"finishReason":"` + tc.reason + `","content":{"parts":[{"text":"partial"}]}}]}`)
		acc := &Accumulator{}
		VendorGoogle.ParseFinal(body, acc)
		if !strings.Contains(acc.Visible(), tc.wantPart) {
			t.Errorf("finishReason %s: Visible() = %q, want substring %q", tc.reason, acc.Visible(), tc.wantPart)
		}
		if acc.StopReason != tc.reason {
			t.Errorf("finishReason %s: StopReason = %q", tc.reason, acc.StopReason)
		}
	}
}

func TestFinalTextEmpty(t *testing.T) {
	acc := &Accumulator{}
	if acc.HasContent() {
		t.Error("HasContent() = true on empty accumulator")
	}
	if acc.FinalText() != "" {
		t.Errorf("FinalText() = %q, want empty", acc.FinalText())
	}
}
