package worker

import (
	"context"
	"time"

	"wikipocket/internal/metrics"
	"wikipocket/internal/store"

	"github.com/go-shiori/go-readability"
	"go.uber.org/zap"
)

// Scraper defines the interface for downloading web pages.
// This allows us to mock the "Download" step in tests.
type Scraper interface {
	Scrape(url string, timeout time.Duration) (*readability.Article, error)
}

// DefaultScraper is the real implementation that uses the internet
type DefaultScraper struct{}

func (s *DefaultScraper) Scrape(url string, timeout time.Duration) (*readability.Article, error) {
	// We return a pointer to the article
	art, err := readability.FromURL(url, timeout)
	return &art, err
}

// Worker takes offline snapshots of favorited articles: it blocks on the
// snapshot queue, downloads the article's full Wikipedia page, runs it
// through readability and stores the result next to the cached extract.
type Worker struct {
	store   store.Store
	logger  *zap.Logger
	scraper Scraper
	timeout time.Duration
}

// NewWorker initializes the worker with the DefaultScraper
func NewWorker(st store.Store, logger *zap.Logger, timeout time.Duration) *Worker {
	return &Worker{
		store:   st,
		logger:  logger,
		scraper: &DefaultScraper{},
		timeout: timeout,
	}
}

// Start runs the worker loop
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Snapshot worker started. Waiting for jobs...")

	for {
		// Wait for job (Blocking call to Redis)
		pageID, err := w.store.PopSnapshotQueue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("Snapshot worker shutting down")
				return
			}
			w.logger.Error("Queue error", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		// Process
		w.processJob(ctx, pageID)
	}
}

func (w *Worker) processJob(ctx context.Context, pageID int) {
	logger := w.logger.With(zap.Int("pageid", pageID))
	logger.Info("Snapshot started")

	article, err := w.store.GetByID(ctx, pageID)
	if err != nil {
		logger.Error("Job failed: article not found", zap.Error(err))
		metrics.SnapshotsTaken.WithLabelValues("error").Inc()
		return
	}

	logger.Info("Downloading", zap.String("url", article.FullURL))

	parsed, err := w.scraper.Scrape(article.FullURL, w.timeout)
	if err != nil {
		// Fail-soft: the job is dropped, the cached extract still serves
		logger.Error("Scraping failed", zap.Error(err))
		metrics.SnapshotsTaken.WithLabelValues("error").Inc()
		return
	}

	if err := w.store.SetSnapshot(ctx, pageID, parsed.Content); err != nil {
		logger.Error("Failed to save snapshot", zap.Error(err))
		metrics.SnapshotsTaken.WithLabelValues("error").Inc()
		return
	}

	metrics.SnapshotsTaken.WithLabelValues("ok").Inc()
	logger.Info("Snapshot complete", zap.String("title", article.Title))
}
