package genai_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/skycast/internal/genai"
)

const generateURL = "https://gen.test/v1beta/models/gemini-test:generateContent"

func newTestClient(t *testing.T, threshold uint32) (*genai.Client, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	client := genai.New(genai.Config{
		BaseURL:          "https://gen.test/",
		APIKey:           "secret",
		Model:            "gemini-test",
		Timeout:          time.Second,
		BreakerThreshold: threshold,
		BreakerCooldown:  time.Minute,
		HTTPClient:       &http.Client{Transport: mock},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return client, mock
}

func candidateResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{
				"content":      map[string]any{"role": "model", "parts": []map[string]any{{"text": text}}},
				"finishReason": "STOP",
			},
		},
	}
}

func TestGenerateJSON_Success(t *testing.T) {
	client, mock := newTestClient(t, 5)

	var captured map[string]any
	mock.RegisterResponder(http.MethodPost, generateURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "secret", req.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(req.Body).Decode(&captured))
		return httpmock.NewJsonResponse(http.StatusOK, candidateResponse(`{"ok":true}`))
	})

	schema := genai.Object(map[string]*genai.Schema{"ok": {Type: genai.TypeBoolean}})
	out, err := client.GenerateJSON(context.Background(), "hello", schema)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out))

	cfg, ok := captured["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "application/json", cfg["responseMimeType"])
	assert.NotNil(t, cfg["responseSchema"])
	assert.Equal(t, 1, mock.GetTotalCallCount())
}

func TestGenerateJSON_StripsCodeFence(t *testing.T) {
	client, mock := newTestClient(t, 5)
	mock.RegisterResponder(http.MethodPost, generateURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, candidateResponse("```json\n{\"a\":1}\n```")))

	out, err := client.GenerateJSON(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(out))
}

func TestGenerateJSON_APIError(t *testing.T) {
	client, mock := newTestClient(t, 5)
	mock.RegisterResponder(http.MethodPost, generateURL,
		httpmock.NewJsonResponderOrPanic(http.StatusBadRequest, map[string]any{
			"error": map[string]any{"code": 400, "message": "API key not valid", "status": "INVALID_ARGUMENT"},
		}))

	_, err := client.GenerateJSON(context.Background(), "p", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_ARGUMENT")
}

func TestGenerateJSON_EmptyCandidates(t *testing.T) {
	client, mock := newTestClient(t, 5)
	mock.RegisterResponder(http.MethodPost, generateURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{"candidates": []any{}}))

	_, err := client.GenerateJSON(context.Background(), "p", nil)
	require.ErrorIs(t, err, genai.ErrEmptyResponse)
}

func TestGenerateJSON_Blocked(t *testing.T) {
	client, mock := newTestClient(t, 5)
	mock.RegisterResponder(http.MethodPost, generateURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
			"promptFeedback": map[string]any{"blockReason": "SAFETY"},
		}))

	_, err := client.GenerateJSON(context.Background(), "p", nil)
	require.ErrorIs(t, err, genai.ErrBlocked)
}

func TestGenerateJSON_NoRetryOnServerError(t *testing.T) {
	client, mock := newTestClient(t, 5)
	mock.RegisterResponder(http.MethodPost, generateURL, httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	_, err := client.GenerateJSON(context.Background(), "p", nil)
	require.Error(t, err)
	assert.Equal(t, 1, mock.GetTotalCallCount(), "a failed call must not be retried")
}

func TestGenerateJSON_BreakerOpensAfterThreshold(t *testing.T) {
	client, mock := newTestClient(t, 2)
	mock.RegisterResponder(http.MethodPost, generateURL, httpmock.NewStringResponder(http.StatusServiceUnavailable, "down"))

	for i := 0; i < 2; i++ {
		_, err := client.GenerateJSON(context.Background(), "p", nil)
		require.Error(t, err)
	}

	_, err := client.GenerateJSON(context.Background(), "p", nil)
	require.ErrorIs(t, err, genai.ErrCircuitOpen)
	assert.Equal(t, 2, mock.GetTotalCallCount(), "open breaker must fail fast")
}

func TestGenerateJSON_CallerCancellationDoesNotTripBreaker(t *testing.T) {
	client, mock := newTestClient(t, 2)
	mock.RegisterResponder(http.MethodPost, generateURL, func(req *http.Request) (*http.Response, error) {
		if err := req.Context().Err(); err != nil {
			return nil, err
		}
		return httpmock.NewJsonResponse(http.StatusOK, candidateResponse(`{"ok":true}`))
	})

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := client.GenerateJSON(ctx, "p", nil)
		require.ErrorIs(t, err, context.Canceled)
	}

	out, err := client.GenerateJSON(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out))
}

func TestObject_RequiredExcludesOptional(t *testing.T) {
	s := genai.Object(map[string]*genai.Schema{
		"b":     genai.Number("b"),
		"a":     genai.String("a"),
		"error": genai.String("err").AsNullable(),
	}, "error")

	assert.Equal(t, []string{"a", "b"}, s.Required)
	assert.True(t, s.Properties["error"].Nullable)
}
