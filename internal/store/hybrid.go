package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"wikipocket/internal/model"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
)

const (
	titleIndexKey    = "idx:title"
	recentIndexKey   = "idx:recent"
	favoritesKey     = "idx:favorites"
	snapshotQueueKey = "queue:snapshots"
	updatesChannel   = "articles:updates"
)

// HybridStore combines Redis (metadata + indexes) and Badger (heavy text:
// article extracts and offline snapshots)
type HybridStore struct {
	rdb *redis.Client
	db  *badger.DB
}

// NewHybridStore initializes databases.
// Pass badgerPath="" to run in "Redis-Only" mode (for CLI tools that only
// touch metadata).
func NewHybridStore(redisAddr string, badgerPath string) (*HybridStore, error) {
	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// Initialize Badger
	var db *badger.DB
	var err error

	if badgerPath != "" {
		opts := badger.DefaultOptions(badgerPath)
		opts.Logger = nil // Silence default logger
		db, err = badger.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger: %w", err)
		}
	}

	return &HybridStore{rdb: rdb, db: db}, nil
}

// Close cleans up connections
func (s *HybridStore) Close() {
	if s.rdb != nil {
		s.rdb.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

func articleKey(pageID int) string {
	return fmt.Sprintf("article:%d", pageID)
}

func extractKey(pageID int) []byte {
	return []byte(fmt.Sprintf("extract:%d", pageID))
}

func snapshotKey(pageID int) []byte {
	return []byte(fmt.Sprintf("snapshot:%d", pageID))
}

// Upsert replaces articles by identity: metadata + indexes go to Redis,
// the heavy extract text goes to Badger. Every write is announced on the
// updates channel so live readers see it without re-querying.
func (s *HybridStore) Upsert(ctx context.Context, articles ...model.Article) error {
	for _, article := range articles {
		meta := article
		meta.Extract = ""

		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}

		member := strconv.Itoa(article.PageID)

		pipe := s.rdb.Pipeline()
		pipe.Set(ctx, articleKey(article.PageID), data, 0)
		pipe.HSet(ctx, titleIndexKey, member, article.Title)
		pipe.ZAdd(ctx, recentIndexKey, redis.Z{
			Score:  float64(article.LastAccessed.UnixMilli()),
			Member: member,
		})
		if article.Favorite {
			pipe.SAdd(ctx, favoritesKey, member)
		} else {
			pipe.SRem(ctx, favoritesKey, member)
		}
		pipe.Publish(ctx, updatesChannel, member)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}

		// If we have heavy content (the extract), save to Badger
		if article.Extract != "" {
			if s.db == nil {
				// Happens when a metadata-only CLI tool tries to persist
				// full article text in Redis-Only mode.
				return fmt.Errorf("cannot save extract: badgerdb is not initialized")
			}
			err = s.db.Update(func(txn *badger.Txn) error {
				return txn.Set(extractKey(article.PageID), []byte(article.Extract))
			})
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// GetByID combines data: metadata from Redis + extract from Badger
func (s *HybridStore) GetByID(ctx context.Context, pageID int) (*model.Article, error) {
	val, err := s.rdb.Get(ctx, articleKey(pageID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	var article model.Article
	if err := json.Unmarshal(val, &article); err != nil {
		return nil, err
	}

	// Fetch extract from Badger (if available AND configured)
	if s.db != nil {
		err = s.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(extractKey(pageID))
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				article.Extract = string(val)
				return nil
			})
		})

		if err != nil && err != badger.ErrKeyNotFound {
			return nil, err
		}
	}

	return &article, nil
}

// SearchByTitle returns every cached article whose title contains the query,
// case-insensitive. Order is unspecified.
func (s *HybridStore) SearchByTitle(ctx context.Context, query string) ([]model.Article, error) {
	titles, err := s.rdb.HGetAll(ctx, titleIndexKey).Result()
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)

	var articles []model.Article
	for idStr, title := range titles {
		if !strings.Contains(strings.ToLower(title), needle) {
			continue
		}

		id, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}

		article, err := s.GetByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// Stale index entry, the record itself is gone
			continue
		} else if err != nil {
			return nil, err
		}

		articles = append(articles, *article)
	}

	return articles, nil
}

// Recent fetches the most recently accessed articles, most-recent first
func (s *HybridStore) Recent(ctx context.Context, limit int) ([]model.Article, error) {
	ids, err := s.rdb.ZRevRange(ctx, recentIndexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	return s.collect(ctx, ids)
}

// Favorites returns favorited articles ordered by title ascending
func (s *HybridStore) Favorites(ctx context.Context) ([]model.Article, error) {
	ids, err := s.rdb.SMembers(ctx, favoritesKey).Result()
	if err != nil {
		return nil, err
	}

	articles, err := s.collect(ctx, ids)
	if err != nil {
		return nil, err
	}

	sort.Slice(articles, func(i, j int) bool {
		return articles[i].Title < articles[j].Title
	})

	return articles, nil
}

// SetFavorite flips the favorite flag. Turning it on queues a snapshot job
// so the worker can grab a full offline copy of the page.
func (s *HybridStore) SetFavorite(ctx context.Context, pageID int, favorite bool) error {
	article, err := s.GetByID(ctx, pageID)
	if err != nil {
		return err
	}

	article.Favorite = favorite
	if err := s.Upsert(ctx, *article); err != nil {
		return err
	}

	if favorite {
		return s.rdb.LPush(ctx, snapshotQueueKey, strconv.Itoa(pageID)).Err()
	}

	return nil
}

// SetAISummary writes the generated summary onto the article
func (s *HybridStore) SetAISummary(ctx context.Context, pageID int, summary string) error {
	article, err := s.GetByID(ctx, pageID)
	if err != nil {
		return err
	}

	article.AISummary = summary
	return s.Upsert(ctx, *article)
}

// SetSnapshot stores the readable offline copy of the page in Badger
func (s *HybridStore) SetSnapshot(ctx context.Context, pageID int, html string) error {
	if s.db == nil {
		return fmt.Errorf("cannot save snapshot: badgerdb is not initialized")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(pageID), []byte(html))
	})
}

// GetSnapshot loads the readable offline copy, if one was ever taken
func (s *HybridStore) GetSnapshot(ctx context.Context, pageID int) (string, error) {
	if s.db == nil {
		return "", ErrNotFound
	}

	var html string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(pageID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			html = string(val)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return "", ErrNotFound
	} else if err != nil {
		return "", err
	}

	return html, nil
}

// Delete removes a batch of articles and all their index entries
func (s *HybridStore) Delete(ctx context.Context, pageIDs ...int) error {
	if len(pageIDs) == 0 {
		return nil
	}

	pipe := s.rdb.Pipeline()
	for _, id := range pageIDs {
		member := strconv.Itoa(id)
		pipe.Del(ctx, articleKey(id))
		pipe.HDel(ctx, titleIndexKey, member)
		pipe.ZRem(ctx, recentIndexKey, member)
		pipe.SRem(ctx, favoritesKey, member)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	if s.db != nil {
		return s.db.Update(func(txn *badger.Txn) error {
			for _, id := range pageIDs {
				if err := txn.Delete(extractKey(id)); err != nil {
					return err
				}
				if err := txn.Delete(snapshotKey(id)); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return nil
}

// OlderThan returns non-favorite articles whose last access is strictly
// before the cutoff. The recency index doubles as the age index.
func (s *HybridStore) OlderThan(ctx context.Context, cutoff time.Time) ([]model.Article, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, recentIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("(%d", cutoff.UnixMilli()),
	}).Result()
	if err != nil {
		return nil, err
	}

	articles, err := s.collect(ctx, ids)
	if err != nil {
		return nil, err
	}

	old := articles[:0]
	for _, article := range articles {
		if article.Favorite {
			continue
		}
		old = append(old, article)
	}

	return old, nil
}

// PopSnapshotQueue waits for a snapshot job in the Redis queue (Blocking)
func (s *HybridStore) PopSnapshotQueue(ctx context.Context) (int, error) {
	// 0 means wait forever until an item arrives
	result, err := s.rdb.BRPop(ctx, 0, snapshotQueueKey).Result()
	if err != nil {
		return 0, err
	}

	return strconv.Atoi(result[1])
}

// Watch streams the pageid of every upserted article until ctx is done.
// This is the push-based read model the UI layer consumes.
func (s *HybridStore) Watch(ctx context.Context) (<-chan int, error) {
	sub := s.rdb.Subscribe(ctx, updatesChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	out := make(chan int)
	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				id, err := strconv.Atoi(msg.Payload)
				if err != nil {
					continue
				}
				select {
				case out <- id:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// collect resolves a list of string ids to articles, skipping stale entries
func (s *HybridStore) collect(ctx context.Context, ids []string) ([]model.Article, error) {
	var articles []model.Article
	for _, idStr := range ids {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}

		article, err := s.GetByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		} else if err != nil {
			return nil, err
		}

		articles = append(articles, *article)
	}

	return articles, nil
}
