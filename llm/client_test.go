package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimcast/db"
)

func TestClientComplete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  ## Hello\n"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, APIKey: "secret", MaxTokens: 500, Temperature: 0.3})
	reply, err := c.Complete(context.Background(), []Message{System("be brief"), User("hi")})
	require.NoError(t, err)
	assert.Equal(t, "## Hello", reply)

	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, 500, got.MaxTokens)
	assert.Equal(t, 0.3, got.Temperature)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "hi", got.Messages[1].Content)
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, APIKey: "k"})
	_, err := c.Complete(context.Background(), []Message{User("hi")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Contains(t, err.Error(), "429")
}

func TestClientEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(Options{BaseURL: srv.URL, APIKey: "k"}).Complete(context.Background(), nil)
	assert.Error(t, err)
}

func TestClientNotConfigured(t *testing.T) {
	c := NewClient(Options{})
	assert.False(t, c.Configured())
	_, err := c.Complete(context.Background(), []Message{User("hi")})
	assert.True(t, errors.Is(err, ErrNotConfigured))

	var nilClient *Client
	assert.False(t, nilClient.Configured())

	assert.Equal(t, DeepSeekBaseURL, NewClient(Options{Provider: "DeepSeek"}).baseURL)
	assert.Equal(t, GroqBaseURL, NewClient(Options{Provider: "groq"}).baseURL)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestQuotaDailyReset(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 5, 1, 23, 0, 0, 0, time.UTC)}
	q := NewQuota(2, WithClock(clock.now))

	assert.True(t, q.Allow())
	assert.True(t, q.Allow())
	assert.False(t, q.Allow())
	assert.Equal(t, Usage{Used: 2, Limit: 2, LimitReached: true}, q.Usage())

	clock.t = clock.t.Add(2 * time.Hour)
	assert.Equal(t, Usage{Used: 0, Limit: 2, LimitReached: false}, q.Usage())
	assert.True(t, q.Allow())
	assert.Equal(t, 1, q.Usage().Used)
}

func TestQuotaZeroLimit(t *testing.T) {
	q := NewQuota(0)
	assert.False(t, q.Allow())
	assert.True(t, q.Usage().LimitReached)
}

func TestQuotaPersistsUsage(t *testing.T) {
	store, err := db.Open(filepath.Join(t.TempDir(), "usage.db"))
	require.NoError(t, err)
	defer store.Close()

	clock := &fakeClock{t: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
	q := NewQuota(3, WithClock(clock.now), WithUsageStore(store))
	assert.True(t, q.Allow())
	assert.True(t, q.Allow())

	// A restarted process picks the day's count back up.
	restarted := NewQuota(3, WithClock(clock.now), WithUsageStore(store))
	assert.Equal(t, 2, restarted.Usage().Used)
	assert.True(t, restarted.Allow())
	assert.False(t, restarted.Allow())

	n, err := store.Usage("2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
