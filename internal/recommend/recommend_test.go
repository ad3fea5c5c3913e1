package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetraminz/churn_audit/internal/audit"
	"github.com/tetraminz/churn_audit/internal/category"
)

func sampleDigest() audit.Digest {
	return audit.Digest{
		Category: category.FalsePositiveChurn,
		Count:    3,
		Excerpts: []string{"bot: Планируете ли вы пользоваться?\nhuman: да, конечно"},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	results []string
	errs    []error
}

func (f *fakeGenerator) Generate(context.Context, audit.Digest, int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return "", errors.New("no more results")
}

func completionJSON(content string) string {
	payload, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "GigaChat",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(payload)
}

type fakeServer struct {
	*httptest.Server
	oauthCalls      atomic.Int32
	completionCalls atomic.Int32
	failCompletions int32
}

func newFakeServer(t *testing.T, failCompletions int32) *fakeServer {
	t.Helper()

	fs := &fakeServer{failCompletions: failCompletions}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/oauth", func(w http.ResponseWriter, r *http.Request) {
		fs.oauthCalls.Add(1)
		if r.Header.Get("Authorization") != "Basic c2VjcmV0" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		if _, err := uuid.Parse(r.Header.Get("RqUID")); err != nil {
			http.Error(w, "bad RqUID", http.StatusBadRequest)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("scope") != DefaultGigaChatScope {
			http.Error(w, "bad scope", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		expires := time.Now().Add(30 * time.Minute).UnixMilli()
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_at": expires})
	})
	mux.HandleFunc("/api/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		n := fs.completionCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			http.Error(w, `{"error":{"message":"unauthorized"}}`, http.StatusUnauthorized)
			return
		}
		if n <= fs.failCompletions {
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
			return
		}

		var body struct {
			Model     string  `json:"model"`
			MaxTokens int     `json:"max_tokens"`
			Temp      float64 `json:"temperature"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if body.Model != DefaultGigaChatModel || body.MaxTokens != defaultMaxTokens || len(body.Messages) != 2 {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		if !strings.Contains(body.Messages[1].Content, string(category.FalsePositiveChurn)) {
			http.Error(w, "prompt lacks category", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON("ОСНОВНЫЕ ПРИЧИНЫ ОШИБКИ\nробот не слышит согласие")))
	})

	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) generator() *ChatGenerator {
	auth := NewGigaChatAuth(fs.URL+"/api/v2/oauth", "c2VjcmV0", "", fs.Client())
	return NewChatGenerator(ChatConfig{BaseURL: fs.URL + "/api/v1"}, auth, fs.Client())
}

func TestChatGeneratorAgainstGigaChatAPI(t *testing.T) {
	t.Parallel()

	fs := newFakeServer(t, 0)
	gen := fs.generator()

	text, err := gen.Generate(context.Background(), sampleDigest(), 10)
	require.NoError(t, err)
	assert.Contains(t, text, "робот не слышит согласие")

	_, err = gen.Generate(context.Background(), sampleDigest(), 10)
	require.NoError(t, err)

	assert.Equal(t, int32(1), fs.oauthCalls.Load(), "token is cached")
	assert.Equal(t, int32(2), fs.completionCalls.Load())
}

func TestChatGeneratorSurfacesAPIErrors(t *testing.T) {
	t.Parallel()

	fs := newFakeServer(t, 5)

	_, err := fs.generator().Generate(context.Background(), sampleDigest(), 10)
	require.Error(t, err)
	assert.Equal(t, int32(1), fs.completionCalls.Load(), "sdk retries are disabled")
}

func TestChatGeneratorWithoutCredentials(t *testing.T) {
	t.Parallel()

	gen := NewChatGenerator(ChatConfig{}, NewGigaChatAuth("", "", "", nil), nil)
	_, err := gen.Generate(context.Background(), sampleDigest(), 1)
	assert.ErrorIs(t, err, ErrNoCredentials)

	_, err = NewChatGenerator(ChatConfig{}, StaticToken(""), nil).Generate(context.Background(), sampleDigest(), 1)
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestGigaChatAuthRejectsBadStatus(t *testing.T) {
	t.Parallel()

	fs := newFakeServer(t, 0)
	auth := NewGigaChatAuth(fs.URL+"/api/v2/oauth", "wrong", "", fs.Client())

	_, err := auth.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oauth status 401")
}

func TestWriterRetriesOnceThenSucceeds(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{errs: []error{errors.New("timeout")}, results: []string{"", "готовый ответ"}}
	w := NewWriter(ModeAI, gen, quietLogger())

	report := w.Build(context.Background(), []audit.Digest{sampleDigest()}, 3)

	assert.Equal(t, 2, gen.calls)
	assert.Contains(t, report, "готовый ответ")
	assert.True(t, strings.HasPrefix(report, "РЕКОМЕНДАЦИИ ДЛЯ ИСПРАВЛЕНИЯ ОШИБОК (AI)\n"+strings.Repeat("=", 60)+"\n"))
	assert.Contains(t, report, "Всего обнаружено ошибок: 3\n\n")
}

func TestWriterFallsBackAfterTwoFailures(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{errs: []error{errors.New("a"), errors.New("b"), errors.New("c")}}
	report := NewWriter(ModeAI, gen, quietLogger()).Build(context.Background(), []audit.Digest{sampleDigest()}, 3)

	assert.Equal(t, 2, gen.calls)
	assert.Contains(t, report, "временно недоступен")
	assert.Contains(t, report, "КАТЕГОРИЯ: "+string(category.FalsePositiveChurn))
}

func TestWriterDoesNotRetryMissingCredentials(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{errs: []error{ErrNoCredentials}}
	report := NewWriter(ModeAI, gen, quietLogger()).Build(context.Background(), []audit.Digest{sampleDigest()}, 3)

	assert.Equal(t, 1, gen.calls)
	assert.Contains(t, report, "временно недоступен")
}

func TestWriterStatisticsOnly(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	digests := []audit.Digest{sampleDigest(), {Category: category.WrongPerson, Count: 1}}

	report := NewWriter(ModeNone, gen, quietLogger()).Build(context.Background(), digests, 4)

	assert.Zero(t, gen.calls)
	assert.Contains(t, report, "(NONE)")
	assert.Equal(t, 2, strings.Count(report, "Рекомендации не требуются."))
	assert.Equal(t, 3, strings.Count(report, strings.Repeat("=", 60)))

	noGen := NewWriter(ModeAI, nil, quietLogger()).Build(context.Background(), digests[:1], 4)
	assert.Contains(t, noGen, "ПРИМЕРОВ ПРОАНАЛИЗИРОВАНО: 1")
}

func TestWriterWriteEndToEnd(t *testing.T) {
	t.Parallel()

	fs := newFakeServer(t, 1)
	path := filepath.Join(t.TempDir(), "out", Filename(ModeAI))

	w := NewWriter(ModeAI, fs.generator(), quietLogger())
	require.NoError(t, w.Write(context.Background(), path, []audit.Digest{sampleDigest()}, 3))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "робот не слышит согласие")
	assert.Equal(t, int32(2), fs.completionCalls.Load())
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	mode, err := ParseMode(" AI ")
	require.NoError(t, err)
	assert.Equal(t, ModeAI, mode)

	mode, err = ParseMode("none")
	require.NoError(t, err)
	assert.Equal(t, "recommendations_none.txt", Filename(mode))

	_, err = ParseMode("manual")
	assert.Error(t, err)
}

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, d audit.Digest, _ int) (string, error) {
	return "совет: " + string(d.Category), nil
}

func TestWriterKeepsDigestOrder(t *testing.T) {
	t.Parallel()

	digests := []audit.Digest{
		{Category: category.WrongPerson, Count: 5},
		{Category: category.CommunicationBreakdown, Count: 4},
		{Category: category.UncertainChurn, Count: 3},
		{Category: category.IgnoredQuestions, Count: 2},
		{Category: category.FalseNegativeChurn, Count: 1},
	}
	report := NewWriter(ModeAI, echoGenerator{}, quietLogger()).Build(context.Background(), digests, 15)

	last := -1
	for _, d := range digests {
		idx := strings.Index(report, "совет: "+string(d.Category))
		require.GreaterOrEqual(t, idx, 0, "missing %s", d.Category)
		assert.Greater(t, idx, last, "%s out of order", d.Category)
		last = idx
	}
}
