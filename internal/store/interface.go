package store

import (
	"context"
	"errors"
	"time"

	"wikipocket/internal/model"
)

var (
	ErrNotFound = errors.New("article not found")
)

type Store interface {
	Upsert(ctx context.Context, articles ...model.Article) error
	GetByID(ctx context.Context, pageID int) (*model.Article, error)
	SearchByTitle(ctx context.Context, query string) ([]model.Article, error)
	Recent(ctx context.Context, limit int) ([]model.Article, error)
	Favorites(ctx context.Context) ([]model.Article, error)
	SetFavorite(ctx context.Context, pageID int, favorite bool) error
	SetAISummary(ctx context.Context, pageID int, summary string) error
	SetSnapshot(ctx context.Context, pageID int, html string) error
	GetSnapshot(ctx context.Context, pageID int) (string, error)
	Delete(ctx context.Context, pageIDs ...int) error
	OlderThan(ctx context.Context, cutoff time.Time) ([]model.Article, error)
	PopSnapshotQueue(ctx context.Context) (int, error)
	Watch(ctx context.Context) (<-chan int, error)
	Close()
}
