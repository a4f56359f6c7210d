package vision_agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func init() {
	apiRetryDelay = time.Millisecond
}

func geminiServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body geminiRequest)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var body geminiRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		handler(w, r, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestGeminiGenerateSuccess(t *testing.T) {
	srv, calls := geminiServer(t, func(w http.ResponseWriter, r *http.Request, body geminiRequest) {
		if r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "key-1" {
			t.Errorf("api key header = %q", r.Header.Get("x-goog-api-key"))
		}
		if got := body.GenerationConfig.ResponseModalities; len(got) != 2 || got[0] != "TEXT" || got[1] != "IMAGE" {
			t.Errorf("responseModalities = %v", got)
		}
		parts := body.Contents[0].Parts
		if parts[0].InlineData == nil || parts[0].InlineData.MIMEType != "image/jpeg" || parts[0].InlineData.Data != "QUJD" {
			t.Errorf("inline image part = %+v", parts[0].InlineData)
		}
		if parts[1].Text != "do it" {
			t.Errorf("prompt part = %q", parts[1].Text)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[
			{"text":"thinking...","thought":true},
			{"text":"[\"Apple\","},
			{"inlineData":{"mimeType":"image/png","data":"iVBORw0KGgo"}},
			{"inlineData":{"mimeType":"image/jpeg","data":"second"}},
			{"text":"\"Rice\"]"}
		]}}]}`))
	})

	client := NewGeminiClient("key-1", srv.URL, "gemini-test", 5*time.Second)
	result, err := client.Generate(context.Background(), GenerateRequest{
		ImageBase64: "QUJD",
		MIMEType:    "image/jpeg",
		Prompt:      "do it",
	})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if result.ImageDataURL() != "data:image/png;base64,iVBORw0KGgo" {
		t.Errorf("ImageDataURL() = %q", result.ImageDataURL())
	}
	if result.Text != `["Apple","Rice"]` {
		t.Errorf("Text = %q", result.Text)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Errorf("calls = %d, want 1", atomic.LoadInt32(calls))
	}
}

func TestGeminiGenerateTextOnly(t *testing.T) {
	srv, _ := geminiServer(t, func(w http.ResponseWriter, r *http.Request, _ geminiRequest) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"I cannot edit images."}]}}]}`))
	})

	result, err := NewGeminiClient("k", srv.URL, "m", time.Second).Generate(context.Background(), GenerateRequest{})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if result.HasImage() {
		t.Error("HasImage() should be false")
	}
	if result.ImageDataURL() != "" {
		t.Error("ImageDataURL() should be empty without an image")
	}
	if result.Text != "I cannot edit images." {
		t.Errorf("Text = %q", result.Text)
	}
}

func TestGeminiGenerateEmptyResponses(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"no candidates", `{"candidates":[]}`, ErrNoCandidates},
		{"blocked prompt", `{"promptFeedback":{"blockReason":"SAFETY"}}`, ErrNoCandidates},
		{"no content", `{"candidates":[{"finishReason":"STOP"}]}`, ErrNoContent},
		{"no parts", `{"candidates":[{"content":{"parts":[]}}]}`, ErrNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := geminiServer(t, func(w http.ResponseWriter, r *http.Request, _ geminiRequest) {
				_, _ = w.Write([]byte(tt.payload))
			})
			_, err := NewGeminiClient("k", srv.URL, "m", time.Second).Generate(context.Background(), GenerateRequest{})
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGeminiGenerateTypedErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		want      error
		wantCalls int32
	}{
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited, 1},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized, 1},
		{"forbidden", http.StatusForbidden, ErrUnauthorized, 1},
		{"bad request", http.StatusBadRequest, nil, 1},
		{"server error retried", http.StatusServiceUnavailable, nil, apiMaxRetries},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := geminiServer(t, func(w http.ResponseWriter, r *http.Request, _ geminiRequest) {
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"upstream said no","status":"FAILED"}}`, tt.status)
			})

			_, err := NewGeminiClient("k", srv.URL, "m", time.Second).Generate(context.Background(), GenerateRequest{})
			if err == nil {
				t.Fatal("Generate() should fail")
			}
			var upstream *UpstreamError
			if !errors.As(err, &upstream) {
				t.Fatalf("error %v is not *UpstreamError", err)
			}
			if upstream.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", upstream.StatusCode, tt.status)
			}
			if upstream.Message != "upstream said no" {
				t.Errorf("Message = %q", upstream.Message)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.want)
			}
			if tt.want == nil && (errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnauthorized)) {
				t.Errorf("status %d must not classify as rate limit or auth", tt.status)
			}
			if got := atomic.LoadInt32(calls); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestGeminiRetryRecovers(t *testing.T) {
	var n int32
	srv, _ := geminiServer(t, func(w http.ResponseWriter, r *http.Request, _ geminiRequest) {
		if atomic.AddInt32(&n, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"data":"AAAA"}}]}}]}`))
	})

	result, err := NewGeminiClient("k", srv.URL, "m", time.Second).Generate(context.Background(), GenerateRequest{})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if result.ImageDataURL() != "data:image/png;base64,AAAA" {
		t.Errorf("missing mime should default to image/png, got %q", result.ImageDataURL())
	}
}
