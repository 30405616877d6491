package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"wikipocket/internal/model"
	"wikipocket/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-shiori/go-readability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockScraper struct {
	MockTitle   string
	MockContent string
	ShouldFail  bool
}

// Scrape simulates downloading the article page
func (m *MockScraper) Scrape(url string, timeout time.Duration) (*readability.Article, error) {
	if m.ShouldFail {
		return nil, fmt.Errorf("simulated 404 error")
	}
	return &readability.Article{
		Title:   m.MockTitle,
		Content: m.MockContent,
		Excerpt: "A short summary",
	}, nil
}

// TestWorker_TakesSnapshot tests that favoriting an article makes the worker
// store an offline snapshot of the full page
func TestWorker_TakesSnapshot(t *testing.T) {
	// Spin up fake Redis
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	// Real store wired to fake Redis + temp Badger
	st, err := store.NewHybridStore(mr.Addr(), t.TempDir())
	require.NoError(t, err)
	defer st.Close()

	// Worker with mocked scraper (no network, no flakiness)
	w := NewWorker(st, zap.NewNop(), 30*time.Second)
	w.scraper = &MockScraper{
		MockTitle:   "Albert Einstein",
		MockContent: "<p>The full readable page</p>",
	}

	// Seed a cached article and favorite it, which queues the job
	article := model.Article{
		PageID:       736,
		Title:        "Albert Einstein",
		FullURL:      "https://en.wikipedia.org/wiki/Albert_Einstein",
		LastAccessed: time.Now(),
	}
	require.NoError(t, st.Upsert(context.Background(), article))
	require.NoError(t, st.SetFavorite(context.Background(), 736, true))

	// Run worker asynchronously
	ctx, cancel := context.WithCancel(context.Background())
	go w.Start(ctx)

	// Give it time to process exactly one job
	time.Sleep(100 * time.Millisecond)
	cancel()

	// Verify the snapshot landed in Badger
	html, err := st.GetSnapshot(context.Background(), 736)
	require.NoError(t, err)
	assert.Equal(t, "<p>The full readable page</p>", html)
}

// TestWorker_HandlesScrapeFailure tests that a failed download drops the job
// without leaving a snapshot behind
func TestWorker_HandlesScrapeFailure(t *testing.T) {
	mr, _ := miniredis.Run()
	defer mr.Close()
	st, _ := store.NewHybridStore(mr.Addr(), t.TempDir())
	defer st.Close()

	// Setup Worker with a BROKEN Scraper
	w := NewWorker(st, zap.NewNop(), 30*time.Second)
	w.scraper = &MockScraper{
		ShouldFail: true, // This will cause Scrape() to error
	}

	article := model.Article{
		PageID:       736,
		Title:        "Albert Einstein",
		FullURL:      "https://en.wikipedia.org/wiki/Albert_Einstein",
		LastAccessed: time.Now(),
	}
	require.NoError(t, st.Upsert(context.Background(), article))
	require.NoError(t, st.SetFavorite(context.Background(), 736, true))

	// Run Worker briefly
	ctx, cancel := context.WithCancel(context.Background())
	go w.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	cancel()

	// No snapshot, but the article itself is untouched
	_, err := st.GetSnapshot(context.Background(), 736)
	assert.ErrorIs(t, err, store.ErrNotFound)

	saved, err := st.GetByID(context.Background(), 736)
	require.NoError(t, err)
	assert.True(t, saved.Favorite)
}
