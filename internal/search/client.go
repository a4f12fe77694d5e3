// Package search implements C10: a provider switch between the default
// Postgres full-text index (queried directly, see database.SearchMessages)
// and an external search service reached over HTTP, plus the batch
// indexer that keeps the external index current as messages change.
package search

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"teamchat-core/server/internal/config"
	"teamchat-core/server/internal/models"
	"teamchat-core/server/internal/resilience"
)

// IndexRequest is one message projected into the external index.
type IndexRequest struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	SenderID  int64  `json:"sender_id"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

type searchResponse struct {
	Hits []struct {
		ChatID    int64   `json:"chat_id"`
		MessageID int64   `json:"message_id"`
		Score     float32 `json:"score"`
		Highlight string  `json:"highlight"`
	} `json:"hits"`
}

// Client talks to the external search/index HTTP service named by
// features.search.url: a resty.Client with a base URL, default timeout,
// and a bounded retry policy on 5xx responses.
type Client struct {
	http    *resty.Client
	cfg     config.SearchConfig
	breaker *gobreaker.CircuitBreaker
}

func NewClient(cfg config.SearchConfig, cbCfg *config.CircuitBreakerConfig) *Client {
	client := resty.New()
	client.SetTimeout(10 * time.Second)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(200 * time.Millisecond)
	client.SetRetryMaxWaitTime(2 * time.Second)
	client.SetHeader("Content-Type", "application/json")
	client.SetBaseURL(cfg.URL)

	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() >= 500
	})

	return &Client{http: client, cfg: cfg, breaker: resilience.NewBreaker("search", cbCfg)}
}

// BreakerState reports the current circuit breaker state for the
// external search service.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// IndexMessage upserts one message into the external index.
func (c *Client) IndexMessage(ctx context.Context, req IndexRequest) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(req).
			Post("/index/messages")
		if err != nil {
			return nil, fmt.Errorf("search index request failed: %w", err)
		}
		if resp.StatusCode() >= 300 {
			return nil, fmt.Errorf("search index error: status %d body %s", resp.StatusCode(), resp.Body())
		}
		return nil, nil
	})
	return err
}

// RemoveMessage tombstones a message from the external index after a
// delete, since a deleted message must no longer appear in search results.
func (c *Client) RemoveMessage(ctx context.Context, chatID, messageID int64) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			Delete(fmt.Sprintf("/index/messages/%d/%d", chatID, messageID))
		if err != nil {
			return nil, fmt.Errorf("search remove request failed: %w", err)
		}
		if resp.StatusCode() >= 300 && resp.StatusCode() != http.StatusNotFound {
			return nil, fmt.Errorf("search remove error: status %d body %s", resp.StatusCode(), resp.Body())
		}
		return nil, nil
	})
	return err
}

// Query asks the external service for search hits, used only when
// features.search.provider is "external"; the default "postgres"
// provider is served directly by database.DB.SearchMessages instead.
func (c *Client) Query(ctx context.Context, chatIDs []int64, query string, limit int) ([]models.SearchHit, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		var out searchResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(map[string]interface{}{
				"chat_ids": chatIDs,
				"query":    query,
				"limit":    limit,
			}).
			SetResult(&out).
			Post("/search/messages")
		if err != nil {
			return nil, fmt.Errorf("search query failed: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("search query error: status %d body %s", resp.StatusCode(), resp.Body())
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}

	out := result.(*searchResponse)
	hits := make([]models.SearchHit, 0, len(out.Hits))
	for _, h := range out.Hits {
		hits = append(hits, models.SearchHit{
			Message:   models.Message{ChatID: h.ChatID, ID: h.MessageID},
			Score:     h.Score,
			Highlight: h.Highlight,
		})
	}
	return hits, nil
}
