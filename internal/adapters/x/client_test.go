package x

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"analysis-bot/internal/domain"
)

func TestCreatePostSendsReply(t *testing.T) {
	var got createTweetRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/2/tweets" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"200","text":"ok"}}`))
	}))
	defer srv.Close()

	client := NewWithHTTPClient(srv.Client(), srv.URL)
	id, err := client.CreatePost(context.Background(), "hello", "100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "200" {
		t.Fatalf("unexpected id %q", id)
	}
	if got.Text != "hello" || got.Reply == nil || got.Reply.InReplyToTweetID != "100" {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestCreatePostWithoutParentOmitsReply(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"data":{"id":"1"}}`))
	}))
	defer srv.Close()

	if _, err := NewWithHTTPClient(srv.Client(), srv.URL).CreatePost(context.Background(), "hello", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := raw["reply"]; ok {
		t.Fatalf("reply must be omitted for root posts")
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusForbidden, `{"detail":"You are not allowed to create a Tweet with duplicate content."}`, domain.ErrForbidden},
		{http.StatusTooManyRequests, `{"title":"Too Many Requests"}`, domain.ErrRateLimited},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))
		_, err := NewWithHTTPClient(srv.Client(), srv.URL).CreatePost(context.Background(), "text", "")
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestOtherStatusIsUntyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"text too long"}]}`))
	}))
	defer srv.Close()

	_, err := NewWithHTTPClient(srv.Client(), srv.URL).CreatePost(context.Background(), "text", "")
	if err == nil || errors.Is(err, domain.ErrForbidden) || errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected untyped error, got %v", err)
	}
	if !strings.Contains(err.Error(), "text too long") {
		t.Fatalf("error should carry api message: %v", err)
	}
}

func TestTweetMetricsAndMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/2/tweets/42":
			if !strings.Contains(r.URL.Query().Get("tweet.fields"), "public_metrics") {
				t.Errorf("public_metrics not requested")
			}
			_, _ = w.Write([]byte(`{"data":{"id":"42","public_metrics":{"like_count":5,"retweet_count":2,"reply_count":1,"quote_count":1}}}`))
		case "/2/users/me":
			_, _ = w.Write([]byte(`{"data":{"id":"7","name":"Bot","username":"bot"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewWithHTTPClient(srv.Client(), srv.URL)
	m, err := client.TweetMetrics(context.Background(), "42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Score() != 5+4+3+2 {
		t.Fatalf("unexpected score %d", m.Score())
	}
	me, err := client.Me(context.Background())
	if err != nil || me.Username != "bot" {
		t.Fatalf("unexpected account %+v err=%v", me, err)
	}
}

func TestNewClientSignsRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "OAuth ") || !strings.Contains(auth, `oauth_consumer_key="ck"`) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":"7","username":"bot"}}`))
	}))
	defer srv.Close()

	client := NewClient(Credentials{APIKey: "ck", APISecret: "cs", AccessToken: "at", AccessTokenSecret: "as"}, srv.URL, time.Second)
	if _, err := client.Me(context.Background()); err != nil {
		t.Fatalf("expected signed request to pass: %v", err)
	}
}
