package wiki

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchFixture = `{
	"query": {
		"search": [
			{"pageid": 736, "title": "Albert Einstein", "snippet": "German-born physicist"},
			{"pageid": 20408, "title": "Marie Curie", "snippet": "Polish physicist"}
		]
	}
}`

const detailsFixture = `{
	"query": {
		"pages": {
			"736": {
				"pageid": 736,
				"title": "Albert Einstein",
				"extract": "Albert Einstein was a theoretical physicist.",
				"fullurl": "https://en.wikipedia.org/wiki/Albert_Einstein",
				"thumbnail": {"source": "https://upload.wikimedia.org/einstein.jpg", "width": 300, "height": 375},
				"coordinates": [{"lat": 52.52, "lon": 13.405, "primary": ""}]
			},
			"20408": {
				"pageid": 20408,
				"title": "Marie Curie",
				"extract": "Marie Curie was a physicist and chemist.",
				"fullurl": "https://en.wikipedia.org/wiki/Marie_Curie"
			}
		}
	}
}`

const geoFixture = `{
	"query": {
		"geosearch": [
			{"pageid": 5083, "title": "Brandenburg Gate", "lat": 52.5163, "lon": 13.3777, "dist": 120.5},
			{"pageid": 9193, "title": "Reichstag", "lat": 52.5186, "lon": 13.3762, "dist": 340}
		]
	}
}`

// fixtureServer answers /w/api.php, recording the query of the last request
func fixtureServer(t *testing.T, body string) (*httptest.Server, *url.Values) {
	t.Helper()

	var lastQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/w/api.php", r.URL.Path)
		lastQuery = r.URL.Query()
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)

	return srv, &lastQuery
}

func TestHTTPClient_Search(t *testing.T) {
	srv, query := fixtureServer(t, searchFixture)
	client := NewHTTPClient(srv.URL, 20, 10000, 20)

	results, err := client.Search(context.Background(), "einstein")
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, 736, results[0].PageID)
	assert.Equal(t, "Albert Einstein", results[0].Title)
	assert.Equal(t, "German-born physicist", results[0].Snippet)

	assert.Equal(t, "query", query.Get("action"))
	assert.Equal(t, "search", query.Get("list"))
	assert.Equal(t, "einstein", query.Get("srsearch"))
	assert.Equal(t, "20", query.Get("srlimit"))
}

func TestHTTPClient_Details(t *testing.T) {
	srv, query := fixtureServer(t, detailsFixture)
	client := NewHTTPClient(srv.URL, 20, 10000, 20)

	pages, err := client.Details(context.Background(), []int{736, 20408})
	require.NoError(t, err)

	require.Len(t, pages, 2)

	einstein := pages[736]
	assert.Equal(t, "Albert Einstein", einstein.Title)
	assert.Equal(t, "Albert Einstein was a theoretical physicist.", einstein.Extract)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Albert_Einstein", einstein.FullURL)
	require.NotNil(t, einstein.Thumbnail)
	assert.Equal(t, "https://upload.wikimedia.org/einstein.jpg", einstein.Thumbnail.Source)
	require.Len(t, einstein.Coordinates, 1)
	assert.Equal(t, 52.52, einstein.Coordinates[0].Lat)

	curie := pages[20408]
	assert.Nil(t, curie.Thumbnail)
	assert.Empty(t, curie.Coordinates)

	// Batch ids joined with a pipe
	assert.Equal(t, "736|20408", query.Get("pageids"))
	assert.Equal(t, "extracts|pageimages|coordinates|info", query.Get("prop"))
	assert.Equal(t, "300", query.Get("pithumbsize"))
}

func TestHTTPClient_Details_EmptyBatch(t *testing.T) {
	// No request should be made at all
	client := NewHTTPClient("http://127.0.0.1:0", 20, 10000, 20)

	pages, err := client.Details(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestHTTPClient_GeoSearch(t *testing.T) {
	srv, query := fixtureServer(t, geoFixture)
	client := NewHTTPClient(srv.URL, 20, 10000, 20)

	results, err := client.GeoSearch(context.Background(), 52.5163, 13.3777)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, 5083, results[0].PageID)
	assert.Equal(t, "Brandenburg Gate", results[0].Title)
	assert.Equal(t, 120.5, results[0].Dist)

	assert.Equal(t, "geosearch", query.Get("list"))
	assert.Equal(t, "52.5163|13.3777", query.Get("gscoord"))
	assert.Equal(t, "10000", query.Get("gsradius"))
	assert.Equal(t, "20", query.Get("gslimit"))
}

func TestHTTPClient_PropagatesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, 20, 10000, 20)

	_, err := client.Search(context.Background(), "einstein")
	assert.Error(t, err)

	_, err = client.Details(context.Background(), []int{736})
	assert.Error(t, err)

	_, err = client.GeoSearch(context.Background(), 1, 2)
	assert.Error(t, err)
}
