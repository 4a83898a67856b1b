// Package x реализует клиента X API v2 для публикации постов от имени пользователя.
package x

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"analysis-bot/internal/domain"
	"analysis-bot/internal/infra/metrics"
)

const defaultBaseURL = "https://api.twitter.com"

var _ domain.PlatformClient = (*Client)(nil)

// Credentials ключи приложения и пользователя для OAuth 1.0a.
type Credentials struct {
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
}

// Client выполняет запросы к X API v2.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient создаёт клиента с подписью запросов OAuth 1.0a.
func NewClient(creds Credentials, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := &http.Client{Timeout: timeout}
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, base)
	cfg := oauth1.NewConfig(creds.APIKey, creds.APISecret)
	signed := cfg.Client(ctx, oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret))
	signed.Timeout = timeout
	return NewWithHTTPClient(signed, baseURL)
}

// NewWithHTTPClient создаёт клиента поверх готового http.Client.
func NewWithHTTPClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

type createTweetRequest struct {
	Text  string      `json:"text"`
	Reply *replyField `json:"reply,omitempty"`
}

type replyField struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type tweetData struct {
	ID            string              `json:"id"`
	Text          string              `json:"text"`
	PublicMetrics domain.TweetMetrics `json:"public_metrics"`
}

type userData struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// CreatePost публикует пост, при непустом parentID как ответ на него.
func (c *Client) CreatePost(ctx context.Context, text, parentID string) (string, error) {
	body := createTweetRequest{Text: text}
	if parentID != "" {
		body.Reply = &replyField{InReplyToTweetID: parentID}
	}
	var resp struct {
		Data tweetData `json:"data"`
	}
	if err := c.call(ctx, http.MethodPost, "/2/tweets", nil, body, &resp, "create_tweet"); err != nil {
		return "", err
	}
	if resp.Data.ID == "" {
		return "", errors.New("x: empty tweet id in response")
	}
	return resp.Data.ID, nil
}

// Me возвращает аккаунт, от имени которого работает клиент.
func (c *Client) Me(ctx context.Context) (domain.PlatformAccount, error) {
	var resp struct {
		Data userData `json:"data"`
	}
	if err := c.call(ctx, http.MethodGet, "/2/users/me", nil, nil, &resp, "users_me"); err != nil {
		return domain.PlatformAccount{}, err
	}
	return domain.PlatformAccount{ID: resp.Data.ID, Username: resp.Data.Username, Name: resp.Data.Name}, nil
}

// TweetMetrics возвращает публичные метрики поста.
func (c *Client) TweetMetrics(ctx context.Context, id string) (domain.TweetMetrics, error) {
	query := url.Values{"tweet.fields": {"public_metrics,created_at"}}
	var resp struct {
		Data tweetData `json:"data"`
	}
	if err := c.call(ctx, http.MethodGet, "/2/tweets/"+url.PathEscape(id), query, nil, &resp, "tweet_lookup"); err != nil {
		return domain.TweetMetrics{}, err
	}
	return resp.Data.PublicMetrics, nil
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, in, out any, op string) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("x: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("x: build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	err = c.do(req, out)
	metrics.ObserveNetworkRequest("x", op, "api.v2", start, err)
	return err
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("x: do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("x: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("x: decode response: %w", err)
	}
	return nil
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (e apiError) message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if len(e.Errors) > 0 && e.Errors[0].Message != "" {
		return e.Errors[0].Message
	}
	return e.Title
}

func statusError(status int, body []byte) error {
	var parsed apiError
	_ = json.Unmarshal(body, &parsed)
	msg := parsed.message()
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	switch status {
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrForbidden, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
	}
	return fmt.Errorf("x: unexpected status %d: %s", status, msg)
}
