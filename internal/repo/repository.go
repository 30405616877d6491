package repo

import (
	"context"
	"errors"
	"time"

	"wikipocket/internal/metrics"
	"wikipocket/internal/model"
	"wikipocket/internal/store"
	"wikipocket/internal/summary"
	"wikipocket/internal/wiki"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Repository is the read-through article cache: it answers reads from the
// local store when it can and falls through to Wikipedia when it can't,
// writing results back on the way out.
//
// No operation here ever returns an error to its caller. Failures are
// logged and degrade to an empty or absent result, so "nothing found" and
// "something broke" look the same from the outside. Callers that need a
// reason should read the logs.
//
// Concurrent calls do not coordinate: two identical searches may both miss
// and both fetch. Upsert-by-identity is commutative, so that is safe.
type Repository struct {
	store      store.Store
	wiki       wiki.Client
	summarizer summary.Summarizer
	logger     *zap.Logger
	maxAge     time.Duration

	now func() time.Time // swapped out in tests
}

func New(st store.Store, wc wiki.Client, sum summary.Summarizer, logger *zap.Logger, maxAge time.Duration) *Repository {
	return &Repository{
		store:      st,
		wiki:       wc,
		summarizer: sum,
		logger:     logger,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SearchArticles serves a title-substring hit from the cache without
// touching the network; only a complete local miss goes remote. Offline
// results stay usable even when they are older than the remote ones would
// be. Articles fetched remotely are cached before being returned.
func (r *Repository) SearchArticles(ctx context.Context, query string) []model.Article {
	local, err := r.store.SearchByTitle(ctx, query)
	if err != nil {
		r.logger.Error("local title search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	if len(local) > 0 {
		metrics.CacheHits.WithLabelValues("search").Inc()
		return local
	}
	metrics.CacheMisses.WithLabelValues("search").Inc()

	results, err := r.wiki.Search(ctx, query)
	if err != nil {
		metrics.WikipediaRequests.WithLabelValues("search", "error").Inc()
		r.logger.Error("wikipedia search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	metrics.WikipediaRequests.WithLabelValues("search", "ok").Inc()

	if len(results) == 0 {
		return nil
	}

	ids := lo.Map(results, func(res wiki.SearchResult, _ int) int {
		return res.PageID
	})

	return r.resolveAndCache(ctx, ids)
}

// GetArticle returns one article by id. A cache hit bumps the
// last-accessed timestamp and persists the bump, so a read is also a
// write. A miss fetches and caches the article; absence anywhere yields
// (nil, false).
func (r *Repository) GetArticle(ctx context.Context, pageID int) (*model.Article, bool) {
	article, err := r.store.GetByID(ctx, pageID)
	switch {
	case err == nil:
		metrics.CacheHits.WithLabelValues("get").Inc()
		article.LastAccessed = r.now()
		if err := r.store.Upsert(ctx, *article); err != nil {
			r.logger.Error("failed to persist access bump", zap.Int("pageid", pageID), zap.Error(err))
			return nil, false
		}
		return article, true
	case errors.Is(err, store.ErrNotFound):
		metrics.CacheMisses.WithLabelValues("get").Inc()
	default:
		r.logger.Error("store read failed", zap.Int("pageid", pageID), zap.Error(err))
		return nil, false
	}

	pages, err := r.wiki.Details(ctx, []int{pageID})
	if err != nil {
		metrics.WikipediaRequests.WithLabelValues("details", "error").Inc()
		r.logger.Error("wikipedia details failed", zap.Int("pageid", pageID), zap.Error(err))
		return nil, false
	}
	metrics.WikipediaRequests.WithLabelValues("details", "ok").Inc()

	page, ok := pages[pageID]
	if !ok {
		return nil, false
	}

	fetched := articleFromPage(page, r.now())
	if err := r.store.Upsert(ctx, fetched); err != nil {
		r.logger.Error("failed to cache article", zap.Int("pageid", pageID), zap.Error(err))
		return nil, false
	}

	return &fetched, true
}

// ToggleFavorite sets the favorite flag unconditionally. Reports whether
// the write stuck.
func (r *Repository) ToggleFavorite(ctx context.Context, pageID int, favorite bool) bool {
	if err := r.store.SetFavorite(ctx, pageID, favorite); err != nil {
		r.logger.Error("failed to toggle favorite",
			zap.Int("pageid", pageID),
			zap.Bool("favorite", favorite),
			zap.Error(err))
		return false
	}
	return true
}

// GenerateAISummary back-fills a missing AI summary. It is a no-op when
// the article is absent or already summarized, so each article is
// summarized at most once. Reports whether a summary is present afterwards.
func (r *Repository) GenerateAISummary(ctx context.Context, pageID int) bool {
	article, err := r.store.GetByID(ctx, pageID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.logger.Error("store read failed", zap.Int("pageid", pageID), zap.Error(err))
		}
		return false
	}

	if article.AISummary != "" {
		return true
	}

	generated := r.summarizer.Summarize(ctx, article.Extract)
	if err := r.store.SetAISummary(ctx, pageID, generated); err != nil {
		r.logger.Error("failed to persist summary", zap.Int("pageid", pageID), zap.Error(err))
		return false
	}

	metrics.SummariesGenerated.Inc()
	return true
}

// GetNearbyArticles resolves full details for everything around the given
// coordinate and caches them, exactly as a search would.
func (r *Repository) GetNearbyArticles(ctx context.Context, lat, lon float64) []model.Article {
	results, err := r.wiki.GeoSearch(ctx, lat, lon)
	if err != nil {
		metrics.WikipediaRequests.WithLabelValues("geosearch", "error").Inc()
		r.logger.Error("geosearch failed",
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
			zap.Error(err))
		return nil
	}
	metrics.WikipediaRequests.WithLabelValues("geosearch", "ok").Inc()

	if len(results) == 0 {
		r.logger.Warn("no nearby articles", zap.Float64("lat", lat), zap.Float64("lon", lon))
		return nil
	}

	ids := lo.Map(results, func(res wiki.GeoResult, _ int) int {
		return res.PageID
	})

	return r.resolveAndCache(ctx, ids)
}

// CleanupOldArticles deletes non-favorite articles last accessed more than
// maxAge ago, in one batch. Runs once at startup, not on a timer. Returns
// the number of articles removed.
func (r *Repository) CleanupOldArticles(ctx context.Context) int {
	cutoff := r.now().Add(-r.maxAge)

	old, err := r.store.OlderThan(ctx, cutoff)
	if err != nil {
		r.logger.Error("failed to list old articles", zap.Error(err))
		return 0
	}
	if len(old) == 0 {
		return 0
	}

	ids := lo.Map(old, func(article model.Article, _ int) int {
		return article.PageID
	})

	if err := r.store.Delete(ctx, ids...); err != nil {
		r.logger.Error("failed to delete old articles", zap.Error(err))
		return 0
	}

	metrics.ArticlesEvicted.Add(float64(len(ids)))
	r.logger.Info("cleaned up old articles", zap.Int("count", len(ids)))
	return len(ids)
}

// RecentArticles lists the most recently accessed articles, newest first
func (r *Repository) RecentArticles(ctx context.Context, limit int) []model.Article {
	articles, err := r.store.Recent(ctx, limit)
	if err != nil {
		r.logger.Error("failed to list recent articles", zap.Error(err))
		return nil
	}
	return articles
}

// FavoriteArticles lists favorites ordered by title
func (r *Repository) FavoriteArticles(ctx context.Context) []model.Article {
	articles, err := r.store.Favorites(ctx)
	if err != nil {
		r.logger.Error("failed to list favorites", zap.Error(err))
		return nil
	}
	return articles
}

// resolveAndCache turns a batch of page ids into cached articles
func (r *Repository) resolveAndCache(ctx context.Context, pageIDs []int) []model.Article {
	pages, err := r.wiki.Details(ctx, pageIDs)
	if err != nil {
		metrics.WikipediaRequests.WithLabelValues("details", "error").Inc()
		r.logger.Error("wikipedia details failed", zap.Ints("pageids", pageIDs), zap.Error(err))
		return nil
	}
	metrics.WikipediaRequests.WithLabelValues("details", "ok").Inc()

	accessed := r.now()
	articles := make([]model.Article, 0, len(pages))
	for _, page := range pages {
		articles = append(articles, articleFromPage(page, accessed))
	}

	if err := r.store.Upsert(ctx, articles...); err != nil {
		r.logger.Error("failed to cache articles", zap.Int("count", len(articles)), zap.Error(err))
		return nil
	}

	return articles
}

// articleFromPage folds a detail payload into the persisted model:
// thumbnail from the payload when present, coordinates from the first
// entry, favorite off, no summary yet.
func articleFromPage(page wiki.Page, accessed time.Time) model.Article {
	article := model.Article{
		PageID:       page.PageID,
		Title:        page.Title,
		Extract:      page.Extract,
		FullURL:      page.FullURL,
		LastAccessed: accessed,
	}

	if page.Thumbnail != nil {
		article.Thumbnail = page.Thumbnail.Source
	}
	if len(page.Coordinates) > 0 {
		article.Coords = &model.Coordinates{
			Lat: page.Coordinates[0].Lat,
			Lon: page.Coordinates[0].Lon,
		}
	}

	return article
}
