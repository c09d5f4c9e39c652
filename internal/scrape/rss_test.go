package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/ideascout/internal/config"
	"github.com/hitoshi/ideascout/internal/model"
)

const testRSSFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Startup Struggles</title>
    <item>
      <title>Why is bookkeeping still so painful</title>
      <link>https://example.com/posts/1</link>
      <guid>post-1</guid>
      <description>&lt;p&gt;Every month I waste hours.&lt;/p&gt;</description>
      <author>carol</author>
      <pubDate>Mon, 03 Aug 2026 09:00:00 GMT</pubDate>
    </item>
    <item>
      <title>No link entry</title>
      <guid>post-2</guid>
    </item>
    <item>
      <title>Second real post</title>
      <link>https://example.com/posts/3</link>
      <guid>post-3</guid>
    </item>
  </channel>
</rss>`

func newTestFeedScraper(cfg config.FeedSourceConfig) *FeedScraper {
	return NewFeedScraper(cfg, &fakeGuard{}, &fakeSanitizer{}, 5*time.Second, 1<<20, testLogger())
}

func TestFeedFetch_ParsesEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testRSSFeed)
	}))
	defer server.Close()

	s := newTestFeedScraper(config.FeedSourceConfig{
		Name:     "medium_startups",
		Type:     "medium",
		URL:      server.URL,
		MaxItems: 30,
	})

	items, err := s.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	// リンクのないエントリは無視される
	if len(items) != 2 {
		t.Fatalf("件数が不正: got %d, want 2", len(items))
	}

	first := items[0]
	if first.URL != "https://example.com/posts/1" || first.ExternalID != "post-1" {
		t.Errorf("1件目の識別子が不正: %+v", first)
	}
	if first.Title != "Why is bookkeeping still so painful" {
		t.Errorf("タイトルが不正: got %q", first.Title)
	}
	if first.PostedAt == nil {
		t.Error("投稿日時がパースされるべき")
	}
}

func TestFeedFetch_RespectsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testRSSFeed)
	}))
	defer server.Close()

	s := newTestFeedScraper(config.FeedSourceConfig{
		Name: "medium_startups", Type: "medium", URL: server.URL, MaxItems: 30,
	})

	items, err := s.Fetch(context.Background(), 1)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 1 {
		t.Errorf("limitが適用されるべき: got %d", len(items))
	}
}

func TestFeedFetch_ValidateURLFails(t *testing.T) {
	guard := &fakeGuard{validateErr: errors.New("プライベートIPへのアクセスは許可されていません")}
	s := NewFeedScraper(config.FeedSourceConfig{
		Name: "bad_feed", Type: "rss", URL: "http://192.168.1.1/feed",
	}, guard, &fakeSanitizer{}, 5*time.Second, 1<<20, testLogger())

	_, err := s.Fetch(context.Background(), 10)
	if err == nil {
		t.Fatal("URL検証に失敗した場合はエラーになるべき")
	}
}

func TestFeedFetch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	s := newTestFeedScraper(config.FeedSourceConfig{
		Name: "medium_startups", Type: "medium", URL: server.URL,
	})

	_, err := s.Fetch(context.Background(), 10)
	if err == nil {
		t.Fatal("エラー応答の場合はエラーになるべき")
	}
}

func TestNewFeedScraper_SourceType(t *testing.T) {
	tests := []struct {
		cfgType string
		want    model.SourceType
	}{
		{"medium", model.SourceTypeMedium},
		{"discourse", model.SourceTypeDiscourse},
		{"rss", model.SourceTypeRSS},
		{"unknown_type", model.SourceTypeRSS},
	}
	for _, tt := range tests {
		s := newTestFeedScraper(config.FeedSourceConfig{Name: "f", Type: tt.cfgType, URL: "https://example.com/feed"})
		if s.Type() != tt.want {
			t.Errorf("Type(%q) = %q, want %q", tt.cfgType, s.Type(), tt.want)
		}
	}
}
