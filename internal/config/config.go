package config

import (
	"log"
	"sync"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfighcl"
)

// Config carries everything the composition root needs. Secrets (the OpenAI
// key) arrive via environment or the local hcl file, never as literals.
type Config struct {
	HTTPAddr         string        `hcl:"http_addr" env:"HTTP_ADDR" default:":3000"`
	RedisAddr        string        `hcl:"redis_addr" env:"REDIS_ADDR" default:"localhost:6379"`
	BadgerPath       string        `hcl:"badger_path" env:"BADGER_PATH" default:"./badger-data"`
	WikipediaBaseURL string        `hcl:"wikipedia_base_url" env:"WIKIPEDIA_BASE_URL" default:"https://en.wikipedia.org"`
	OpenAIKey        string        `hcl:"openai_key" env:"OPENAI_KEY"`
	OpenAIBaseURL    string        `hcl:"openai_base_url" env:"OPENAI_BASE_URL"`
	SearchLimit      int           `hcl:"search_limit" env:"SEARCH_LIMIT" default:"20"`
	GeoRadiusMeters  int           `hcl:"geo_radius_meters" env:"GEO_RADIUS_METERS" default:"10000"`
	GeoLimit         int           `hcl:"geo_limit" env:"GEO_LIMIT" default:"20"`
	RecentLimit      int           `hcl:"recent_limit" env:"RECENT_LIMIT" default:"10"`
	MaxArticleAge    time.Duration `hcl:"max_article_age" env:"MAX_ARTICLE_AGE" default:"720h"`
	SnapshotTimeout  time.Duration `hcl:"snapshot_timeout" env:"SNAPSHOT_TIMEOUT" default:"30s"`
	LocationLat      float64       `hcl:"location_lat" env:"LOCATION_LAT"`
	LocationLon      float64       `hcl:"location_lon" env:"LOCATION_LON"`
	LocationEnabled  bool          `hcl:"location_enabled" env:"LOCATION_ENABLED"`
}

var (
	cfg  Config
	once sync.Once
)

// Get loads the config exactly once: defaults, then hcl files, then
// WIKIPOCKET_-prefixed environment variables.
func Get() Config {
	once.Do(func() {
		loader := aconfig.LoaderFor(&cfg, aconfig.Config{
			EnvPrefix: "WIKIPOCKET",
			Files:     []string{"./wikipocket.hcl", "./wikipocket.local.hcl"},
			FileDecoders: map[string]aconfig.FileDecoder{
				".hcl": aconfighcl.New(),
			},
		})

		if err := loader.Load(); err != nil {
			log.Printf("[ERROR] failed to load config: %v", err)
		}
	})

	return cfg
}
