package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Client defines the three query shapes we issue against the Wikipedia API.
// This allows us to mock the remote side in repository tests.
type Client interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
	Details(ctx context.Context, pageIDs []int) (map[int]Page, error)
	GeoSearch(ctx context.Context, lat, lon float64) ([]GeoResult, error)
}

// SearchResult is one hit from a full-text search. Transient, never persisted.
type SearchResult struct {
	PageID  int    `json:"pageid"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// GeoResult is one hit from a geosearch. Transient, never persisted.
type GeoResult struct {
	PageID int     `json:"pageid"`
	Title  string  `json:"title"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Dist   float64 `json:"dist"` // meters from the query point
}

// Page is the detail payload for a single article.
type Page struct {
	PageID      int          `json:"pageid"`
	Title       string       `json:"title"`
	Extract     string       `json:"extract"`
	FullURL     string       `json:"fullurl"`
	Thumbnail   *Thumbnail   `json:"thumbnail,omitempty"`
	Coordinates []Coordinate `json:"coordinates,omitempty"`
}

type Thumbnail struct {
	Source string `json:"source"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type Coordinate struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Primary string  `json:"primary"`
}

type searchResponse struct {
	Query struct {
		Search []SearchResult `json:"search"`
	} `json:"query"`
}

type detailsResponse struct {
	Query struct {
		Pages map[string]Page `json:"pages"`
	} `json:"query"`
}

type geoResponse struct {
	Query struct {
		GeoSearch []GeoResult `json:"geosearch"`
	} `json:"query"`
}

// HTTPClient is the real implementation talking to a MediaWiki endpoint.
// No caching, no retries; transport failures propagate to the caller.
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	searchLimit int
	geoRadius   int // meters
	geoLimit    int
	thumbnailPx int
}

func NewHTTPClient(baseURL string, searchLimit, geoRadius, geoLimit int) *HTTPClient {
	return &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		searchLimit: searchLimit,
		geoRadius:   geoRadius,
		geoLimit:    geoLimit,
		thumbnailPx: 300,
	}
}

// Search runs a full-text search capped at the configured result limit
func (c *HTTPClient) Search(ctx context.Context, query string) ([]SearchResult, error) {
	params := url.Values{
		"action":   {"query"},
		"format":   {"json"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {strconv.Itoa(c.searchLimit)},
		"utf8":     {"1"},
	}

	var resp searchResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}

	return resp.Query.Search, nil
}

// Details fetches full article payloads for a batch of page ids
func (c *HTTPClient) Details(ctx context.Context, pageIDs []int) (map[int]Page, error) {
	if len(pageIDs) == 0 {
		return map[int]Page{}, nil
	}

	joined := strings.Join(lo.Map(pageIDs, func(id int, _ int) string {
		return strconv.Itoa(id)
	}), "|")

	params := url.Values{
		"action":          {"query"},
		"format":          {"json"},
		"prop":            {"extracts|pageimages|coordinates|info"},
		"pageids":         {joined},
		"explaintext":     {"1"},
		"exsectionformat": {"plain"},
		"piprop":          {"thumbnail"},
		"pithumbsize":     {strconv.Itoa(c.thumbnailPx)},
		"inprop":          {"url"},
		"utf8":            {"1"},
	}

	var resp detailsResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}

	pages := make(map[int]Page, len(resp.Query.Pages))
	for _, page := range resp.Query.Pages {
		pages[page.PageID] = page
	}

	return pages, nil
}

// GeoSearch lists articles around a coordinate within the configured radius
func (c *HTTPClient) GeoSearch(ctx context.Context, lat, lon float64) ([]GeoResult, error) {
	params := url.Values{
		"action":   {"query"},
		"format":   {"json"},
		"list":     {"geosearch"},
		"gscoord":  {fmt.Sprintf("%g|%g", lat, lon)},
		"gsradius": {strconv.Itoa(c.geoRadius)},
		"gslimit":  {strconv.Itoa(c.geoLimit)},
		"utf8":     {"1"},
	}

	var resp geoResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}

	return resp.Query.GeoSearch, nil
}

func (c *HTTPClient) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/w/api.php?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wikipedia api returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
