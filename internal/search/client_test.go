package search

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamchat-core/server/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	cfg := config.SearchConfig{Enabled: true, Provider: "external", URL: srv.URL}
	return NewClient(cfg, &config.CircuitBreakerConfig{}), srv
}

func TestClient_IndexMessage(t *testing.T) {
	var gotBody IndexRequest
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/index/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	err := client.IndexMessage(t.Context(), IndexRequest{ChatID: 1, MessageID: 2, SenderID: 3, Content: "hi"})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), gotBody.ChatID)
	assert.Equal(t, "hi", gotBody.Content)
}

func TestClient_IndexMessage_ServerError(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	err := client.IndexMessage(t.Context(), IndexRequest{ChatID: 1, MessageID: 2})
	assert.Error(t, err)
}

func TestClient_RemoveMessage_NotFoundIsNotAnError(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/index/messages/1/2", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	})
	defer srv.Close()

	err := client.RemoveMessage(t.Context(), 1, 2)
	assert.NoError(t, err)
}

func TestClient_Query(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/messages", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"hits": []map[string]interface{}{
				{"chat_id": 1, "message_id": 5, "score": 0.9, "highlight": "<em>hi</em>"},
			},
		})
	})
	defer srv.Close()

	hits, err := client.Query(t.Context(), []int64{1}, "hi", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(1), hits[0].Message.ChatID)
	assert.Equal(t, int64(5), hits[0].Message.ID)
	assert.Equal(t, "<em>hi</em>", hits[0].Highlight)
}
