package classifier

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"recipe-lens/internal/core/cache"
	"recipe-lens/internal/core/image"
	"recipe-lens/internal/core/recipe"
	"recipe-lens/internal/infrastructure/config"
)

func testHandle() image.Handle {
	return image.Handle{Data: []byte{0xFF, 0xD8, 0xFF, 0xD9}, Format: "jpeg", Width: 1, Height: 1, Hash: "abc123"}
}

func TestConfigApply(t *testing.T) {
	preds := []recipe.Prediction{
		{Label: "tofu", Confidence: 0.01},
		{Label: "pizza", Confidence: 0.6},
		{Label: "ramen", Confidence: 0.6},
		{Label: "sushi", Confidence: 0.9},
	}
	got := Config{Threshold: 0.05, NumResults: 2}.Apply(preds)
	if len(got) != 2 || got[0].Label != "sushi" || got[1].Label != "pizza" {
		t.Errorf("unexpected result: %+v", got)
	}

	all := Config{}.Apply(preds)
	if len(all) != 4 {
		t.Errorf("zero config should keep everything, got %d", len(all))
	}
	if preds[0].Label != "tofu" {
		t.Error("input was reordered")
	}
}

func TestParsePredictions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{"array", `[{"label":"pizza","confidence":0.9}]`, 1, false},
		{"wrapped", `{"predictions":[{"label":"pizza","confidence":0.9},{"label":"sushi","confidence":"0.4"}]}`, 2, false},
		{"fenced", "```json\n[{\"label\":\"pizza\",\"confidence\":0.9}]\n```", 1, false},
		{"prose", `Here you go: [{"label":"ramen","confidence":0.7}] hope that helps`, 1, false},
		{"empty array", `[]`, 0, false},
		{"null", `null`, 0, false},
		{"empty", ``, 0, false},
		{"wrapped without list", `{}`, 0, false},
		{"broken", `[{"label":`, 0, true},
		{"infinite", `[{"label":"pizza","confidence":1e400}]`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePredictions(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got == nil || len(got) != tt.want {
				t.Errorf("got %#v, want %d predictions", got, tt.want)
			}
		})
	}
}

func TestOpenRouterClassifier(t *testing.T) {
	var gotAuth, gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Content []map[string]interface{} `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Messages) > 0 && len(body.Messages[0].Content) > 0 {
			gotPrompt, _ = body.Messages[0].Content[0]["text"].(string)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"[{\"label\":\"Pizza\",\"confidence\":0.9},{\"label\":\"Tofu\",\"confidence\":0.01},{\"label\":\"Sushi\",\"confidence\":0.95}]"}}]}`)
	}))
	defer srv.Close()

	c := NewOpenRouterClassifier(OpenRouterOptions{
		APIKey:  "sk-test",
		BaseURL: srv.URL,
		Model:   "test-model",
		Labels:  []string{"pizza", "sushi"},
	})
	preds, err := c.Classify(context.Background(), testHandle(), Config{Threshold: 0.05, NumResults: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(preds) != 2 || preds[0].Label != "Sushi" || preds[1].Label != "Pizza" {
		t.Errorf("unexpected predictions: %+v", preds)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("authorization header = %q", gotAuth)
	}
	if !strings.Contains(gotPrompt, "pizza, sushi") {
		t.Errorf("prompt does not list known labels: %q", gotPrompt)
	}
}

func TestOpenRouterClassifierErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, nil},
		{"no choices", http.StatusOK, `{"choices":[]}`, ErrNoChoices},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewOpenRouterClassifier(OpenRouterOptions{BaseURL: srv.URL})
			_, err := c.Classify(context.Background(), testHandle(), Config{})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	c := NewOpenRouterClassifier(OpenRouterOptions{BaseURL: "http://127.0.0.1:1"})
	if _, err := c.Classify(context.Background(), image.Handle{}, Config{}); !errors.Is(err, image.ErrEmptyImage) {
		t.Errorf("expected ErrEmptyImage, got %v", err)
	}
}

func TestRemoteClassifier(t *testing.T) {
	var got predictRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"label":"ramen","confidence":0.8},{"label":"pizza","confidence":null}]`)
	}))
	defer srv.Close()

	c := NewRemoteClassifier(srv.URL, 0)
	cfg := Config{Mean: 0, Std: 255, NumResults: 3, Threshold: 0, ThreadCount: 2}
	preds, err := c.Classify(context.Background(), testHandle(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(preds) != 2 || preds[0].Label != "ramen" || preds[1].Confidence != 0 {
		t.Errorf("unexpected predictions: %+v", preds)
	}

	if got.Config != cfg {
		t.Errorf("model config not forwarded: %+v", got.Config)
	}
	if data, err := base64.StdEncoding.DecodeString(got.Image); err != nil || len(data) != len(testHandle().Data) {
		t.Errorf("image not forwarded as base64: %v", err)
	}
}

type countingClassifier struct {
	calls int32
	preds []recipe.Prediction
	err   error
}

func (c *countingClassifier) Name() string { return "counting" }

func (c *countingClassifier) Classify(ctx context.Context, img image.Handle, cfg Config) ([]recipe.Prediction, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.preds, c.err
}

func TestCachedClassifier(t *testing.T) {
	store := cache.NewManager(10, 0, 0)
	defer store.Close()

	next := &countingClassifier{preds: []recipe.Prediction{{Label: "pizza", Confidence: 0.9}}}
	c := WithCache(next, store)
	if c.Name() != "counting" {
		t.Errorf("Name() = %q", c.Name())
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		preds, err := c.Classify(ctx, testHandle(), Config{NumResults: 5})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(preds) != 1 || preds[0].Label != "pizza" {
			t.Errorf("unexpected predictions: %+v", preds)
		}
	}
	if next.calls != 1 {
		t.Errorf("expected 1 underlying call, got %d", next.calls)
	}

	// 不同的模型參數不共用快取
	if _, err := c.Classify(ctx, testHandle(), Config{NumResults: 3}); err != nil {
		t.Fatal(err)
	}
	if next.calls != 2 {
		t.Errorf("expected 2 underlying calls, got %d", next.calls)
	}

	if s := store.Stats(); s.Hits != 2 || s.Size != 2 {
		t.Errorf("unexpected cache stats: %+v", s)
	}
}

func TestCachedClassifierDoesNotCacheErrors(t *testing.T) {
	store := cache.NewManager(10, 0, 0)
	defer store.Close()

	next := &countingClassifier{err: errors.New("model down")}
	c := WithCache(next, store)
	for i := 0; i < 2; i++ {
		if _, err := c.Classify(context.Background(), testHandle(), Config{}); err == nil {
			t.Fatal("expected error")
		}
	}
	if next.calls != 2 {
		t.Errorf("errors should not be cached, got %d calls", next.calls)
	}
}

func TestWithCacheNilStore(t *testing.T) {
	next := &countingClassifier{}
	if c := WithCache(next, nil); c != Classifier(next) {
		t.Error("expected classifier to be returned unchanged")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		provider string
		want     string
		wantErr  bool
	}{
		{"openrouter", "openrouter", false},
		{"remote", "remote", false},
		{"onnx", "", true},
	}
	for _, tt := range tests {
		cfg := &config.Config{
			Classifier: config.ClassifierConfig{Provider: tt.provider},
			Remote:     config.RemoteConfig{URL: "http://localhost:8888"},
		}
		c, err := New(cfg, []string{"pizza"})
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.provider)
			}
			continue
		}
		if err != nil || c.Name() != tt.want {
			t.Errorf("%s: got %v, %v", tt.provider, c, err)
		}
	}
}
