package reddit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"test-token","token_type":"bearer","expires_in":3600}`))
	}))
	t.Cleanup(tokenSrv.Close)

	apiSrv := httptest.NewServer(handler)
	t.Cleanup(apiSrv.Close)

	c, err := NewClient(context.Background(), Config{
		ClientID:     "id",
		ClientSecret: "secret",
		UserAgent:    "pulse-test/1.0",
		BaseURL:      apiSrv.URL,
		TokenURL:     tokenSrv.URL,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewSubmissions_ParsesListing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "pulse-test/1.0" {
			t.Errorf("unexpected user agent %q", ua)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"kind": "Listing",
			"data": {
				"after": "t3_next",
				"children": [
					{"kind": "t3", "data": {"id": "aaa", "title": "First", "is_self": true, "selftext": "body", "created_utc": 1700000000.0, "subreddit": "golang"}},
					{"kind": "t3", "data": {"id": "bbb", "title": "Sticky", "stickied": true, "created_utc": 1699999999.0, "subreddit": "golang"}}
				]
			}
		}`))
	})

	listing, err := c.NewSubmissions(context.Background(), "golang", "", 100)
	if err != nil {
		t.Fatalf("NewSubmissions: %v", err)
	}
	if listing.After != "t3_next" {
		t.Fatalf("unexpected cursor %q", listing.After)
	}
	if len(listing.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(listing.Items))
	}
	if listing.Items[0].ID != "aaa" || listing.Items[0].Subreddit != "golang" {
		t.Fatalf("unexpected first item %+v", listing.Items[0])
	}
	if !listing.Items[1].Excluded() {
		t.Fatalf("stickied item should be excluded")
	}
}

func TestNewSubmissions_RateLimited(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.Header().Set("x-ratelimit-reset", "90")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.NewSubmissions(context.Background(), "golang", "", 0)
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rle.Hints.RetryAfter != 120 || rle.Hints.Reset != 90 {
		t.Fatalf("unexpected hints %+v", rle.Hints)
	}
}

func TestNewSubmissions_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if _, err := c.NewSubmissions(context.Background(), "golang", "", 0); err == nil {
		t.Fatalf("expected error on 502")
	}
}

func TestItem_CrosspostTitle(t *testing.T) {
	it := Item{CrosspostParents: []crosspostParent{{Title: "orig"}, {Title: "other"}}}
	if it.CrosspostTitle() != "orig" {
		t.Fatalf("expected first parent title")
	}
	if (Item{}).CrosspostTitle() != "" {
		t.Fatalf("expected empty title without parents")
	}
}
