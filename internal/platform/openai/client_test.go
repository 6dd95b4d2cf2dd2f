package openai

import (
	"encoding/json"
	"testing"
)

func TestAssistantTextPlainString(t *testing.T) {
	raw := json.RawMessage(`"hello world"`)
	if got := assistantText(raw); got != "hello world" {
		t.Fatalf("assistantText: got=%q", got)
	}
}

func TestAssistantTextFragments(t *testing.T) {
	raw := json.RawMessage(`[{"type":"text","text":"{\"a\":"},{"type":"text","text":"1}"}]`)
	if got := assistantText(raw); got != `{"a":1}` {
		t.Fatalf("assistantText: got=%q", got)
	}
}

func TestAssistantTextEmpty(t *testing.T) {
	if got := assistantText(nil); got != "" {
		t.Fatalf("assistantText: want empty got=%q", got)
	}
}

func TestDecodeImageResultPrefersInlineBytes(t *testing.T) {
	p, err := decodeImageResult(imageResult{B64JSON: "aGVsbG8=", URL: "https://example.com/x.png"})
	if err != nil {
		t.Fatalf("decodeImageResult: %v", err)
	}
	if string(p.Bytes) != "hello" {
		t.Fatalf("bytes: got=%q", p.Bytes)
	}
	if p.URL != "" {
		t.Fatalf("url should be empty when bytes decoded, got=%q", p.URL)
	}
}

func TestDecodeImageResultURLFallback(t *testing.T) {
	p, err := decodeImageResult(imageResult{URL: "https://example.com/x.png"})
	if err != nil {
		t.Fatalf("decodeImageResult: %v", err)
	}
	if p.URL != "https://example.com/x.png" {
		t.Fatalf("url: got=%q", p.URL)
	}
}

func TestDecodeImageResultEmpty(t *testing.T) {
	if _, err := decodeImageResult(imageResult{}); err == nil {
		t.Fatalf("decodeImageResult: expected error for empty result")
	}
}

func TestVideoStatusSynthesizesContentURL(t *testing.T) {
	c := &client{baseURL: "https://api.example.com"}
	st := c.videoStatusFromResponse(videoJobResponse{ID: "vid_1", Status: "Succeeded"}, "{}")
	if st.Status != "succeeded" {
		t.Fatalf("status: got=%q", st.Status)
	}
	if len(st.Outputs) != 1 {
		t.Fatalf("outputs: got=%d", len(st.Outputs))
	}
	want := "https://api.example.com/v1/videos/vid_1/content"
	if st.Outputs[0].URL != want {
		t.Fatalf("content url: want=%q got=%q", want, st.Outputs[0].URL)
	}
}

func TestVideoStatusRunningHasNoSyntheticOutput(t *testing.T) {
	c := &client{baseURL: "https://api.example.com"}
	st := c.videoStatusFromResponse(videoJobResponse{ID: "vid_1", Status: "running"}, "{}")
	if len(st.Outputs) != 0 {
		t.Fatalf("outputs: want none got=%d", len(st.Outputs))
	}
}

func TestSameHost(t *testing.T) {
	if !sameHost("https://api.example.com", "https://api.example.com/v1/videos/x/content") {
		t.Fatalf("sameHost: expected true for same host")
	}
	if sameHost("https://api.example.com", "https://blob.example.net/signed") {
		t.Fatalf("sameHost: expected false for different host")
	}
}

func TestIsUnsupportedTemperature(t *testing.T) {
	err := &providerHTTPError{StatusCode: 400, Body: "Unsupported value: 'temperature' does not support 0.2"}
	if !isUnsupportedTemperature(err) {
		t.Fatalf("isUnsupportedTemperature: expected true")
	}
	other := &providerHTTPError{StatusCode: 400, Body: "bad prompt"}
	if isUnsupportedTemperature(other) {
		t.Fatalf("isUnsupportedTemperature: expected false")
	}
}
