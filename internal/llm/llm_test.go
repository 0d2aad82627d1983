package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/quizgen/internal/model"
)

const quizReply = `{"questions":[{"questionText":"Q?","questionType":"multiple_choice","points":1,"options":[{"optionText":"A","isCorrect":true}]}]}`

// fakeOpenAI serves the subset of the OpenAI API the client uses.
func fakeOpenAI(t *testing.T, handle func(w http.ResponseWriter, body map[string]any)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		handle(w, body)
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":"gpt-4o-mini","object":"model"}]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []any{map[string]any{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func testConfig() model.PipelineConfig {
	cfg := model.DefaultPipelineConfig()
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestCompleteNonStreaming(t *testing.T) {
	var got map[string]any
	srv := fakeOpenAI(t, func(w http.ResponseWriter, body map[string]any) {
		got = body
		writeCompletion(w, quizReply)
	})

	c := New(srv.URL+"/v1", "test-key", testConfig())
	fragments, err := c.Complete(context.Background(), "system", "user prompt")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(fragments) != 1 || fragments[0] != quizReply {
		t.Errorf("fragments = %q, want single reply", fragments)
	}

	if got["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v, want gpt-4o-mini", got["model"])
	}
	if got["max_tokens"] != float64(2500) {
		t.Errorf("max_tokens = %v, want 2500", got["max_tokens"])
	}
	rf, _ := got["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("response_format = %v, want json_object", got["response_format"])
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if m, _ := msgs[1].(map[string]any); m["content"] != "user prompt" || m["role"] != "user" {
		t.Errorf("second message = %v, want user prompt", msgs[1])
	}
}

func TestCompleteWithoutJSONMode(t *testing.T) {
	var got map[string]any
	srv := fakeOpenAI(t, func(w http.ResponseWriter, body map[string]any) {
		got = body
		writeCompletion(w, quizReply)
	})

	cfg := testConfig()
	cfg.JSONMode = false
	if _, err := New(srv.URL+"/v1", "test-key", cfg).Complete(context.Background(), "s", "u"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, ok := got["response_format"]; ok {
		t.Errorf("response_format should be omitted, got %v", got["response_format"])
	}
}

func TestCompleteStreaming(t *testing.T) {
	chunks := []string{`{"questions":`, `[{"questionText":"Q?"}`, `]}`}
	srv := fakeOpenAI(t, func(w http.ResponseWriter, body map[string]any) {
		if body["stream"] != true {
			t.Errorf("stream = %v, want true", body["stream"])
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			data, _ := json.Marshal(map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion.chunk",
				"choices": []any{map[string]any{"index": 0, "delta": map[string]any{"content": c}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	cfg := testConfig()
	cfg.Stream = true
	fragments, err := New(srv.URL+"/v1", "test-key", cfg).Complete(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if strings.Join(fragments, "|") != strings.Join(chunks, "|") {
		t.Errorf("fragments = %q, want %q", fragments, chunks)
	}
	if _, err := Parse(fragments...); err != nil {
		t.Errorf("streamed fragments should parse: %v", err)
	}
}

func TestCompleteAPIError(t *testing.T) {
	srv := fakeOpenAI(t, func(w http.ResponseWriter, body map[string]any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`)
	})

	_, err := New(srv.URL+"/v1", "test-key", testConfig()).Complete(context.Background(), "s", "u")
	if err == nil {
		t.Fatal("expected error")
	}
	if code := StatusCode(err); code != http.StatusTooManyRequests {
		t.Errorf("StatusCode() = %d, want 429", code)
	}
}

func TestCompleteEmptyReply(t *testing.T) {
	srv := fakeOpenAI(t, func(w http.ResponseWriter, body map[string]any) {
		writeCompletion(w, "   ")
	})

	_, err := New(srv.URL+"/v1", "test-key", testConfig()).Complete(context.Background(), "s", "u")
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestCompleteDeadline(t *testing.T) {
	srv := fakeOpenAI(t, func(w http.ResponseWriter, body map[string]any) {
		time.Sleep(200 * time.Millisecond)
		writeCompletion(w, quizReply)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := New(srv.URL+"/v1", "test-key", testConfig()).Complete(ctx, "s", "u")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestPing(t *testing.T) {
	srv := fakeOpenAI(t, func(w http.ResponseWriter, body map[string]any) {})

	if err := New(srv.URL+"/v1", "test-key", testConfig()).Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	err := New(srv.URL+"/v1", "wrong", testConfig()).Ping(context.Background())
	if StatusCode(err) != http.StatusUnauthorized {
		t.Errorf("Ping with bad key: StatusCode = %d, want 401 (err %v)", StatusCode(err), err)
	}
}

func TestStatusCodeUnknown(t *testing.T) {
	if got := StatusCode(errors.New("boom")); got != 0 {
		t.Errorf("StatusCode() = %d, want 0", got)
	}
}
