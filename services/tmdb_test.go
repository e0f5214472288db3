package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchlist/models"
)

// fakeTMDB serves a tiny catalog: TV 1 is animated, TV 2 is not, movie 10 is a film
func fakeTMDB(t *testing.T, detailCalls *int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(v); err != nil {
			t.Errorf("encode: %v", err)
		}
	}

	mux.HandleFunc("/search/tv", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "pt-BR", r.URL.Query().Get("language"))
		if r.URL.Query().Get("query") == "nothing" {
			writeJSON(w, map[string]interface{}{"results": []interface{}{}})
			return
		}
		writeJSON(w, map[string]interface{}{"results": []map[string]interface{}{{"id": 1}, {"id": 2}}})
	})
	mux.HandleFunc("/search/movie", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]interface{}{"results": []map[string]interface{}{{"id": 10}}})
	})
	mux.HandleFunc("/tv/1", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(detailCalls, 1)
		writeJSON(w, map[string]interface{}{
			"id": 1, "name": "Cowboy Bebop", "first_air_date": "1998-04-03", "poster_path": "/bebop.jpg",
			"number_of_seasons": 1, "number_of_episodes": 26,
			"genres": []map[string]interface{}{{"id": 16, "name": "Animação"}, {"id": 10759, "name": "Action & Adventure"}},
		})
	})
	mux.HandleFunc("/tv/2", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(detailCalls, 1)
		writeJSON(w, map[string]interface{}{
			"id": 2, "name": "The Wire", "first_air_date": "2002-06-02",
			"genres": []map[string]interface{}{{"id": 18, "name": "Drama"}},
		})
	})
	mux.HandleFunc("/movie/10", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(detailCalls, 1)
		writeJSON(w, map[string]interface{}{
			"id": 10, "title": "Spirited Away", "release_date": "2001-07-20", "runtime": 125,
			"genres": []map[string]interface{}{{"id": 16, "name": "Animação"}},
		})
	})
	mux.HandleFunc("/trending/all/week", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]interface{}{"results": []map[string]interface{}{
			{"id": 10, "media_type": "movie", "title": "Spirited Away"},
			{"id": 2, "media_type": "tv", "name": "The Wire"},
			{"id": 99, "media_type": "person", "name": "Someone"},
		}})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestTMDB(server *httptest.Server, cacheTTL time.Duration) *TMDBService {
	return NewTMDBService(TMDBConfig{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		ImageBaseURL: "https://img.example/w500",
		CacheTTL:     cacheTTL,
	}, nil)
}

func TestTMDBService_SearchAnimeKeepsAnimation(t *testing.T) {
	var calls int32
	svc := newTestTMDB(fakeTMDB(t, &calls), 0)

	results, err := svc.Search(context.Background(), models.CategoryAnime, "bebop")
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "Cowboy Bebop", results[0].Name)
	assert.Equal(t, 1998, results[0].Year)
	assert.Equal(t, 26, results[0].Episodes)
	assert.Equal(t, "https://img.example/w500/bebop.jpg", results[0].PosterURL)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "one detail call per search hit")
}

func TestTMDBService_SearchSeriesDropsAnimation(t *testing.T) {
	var calls int32
	svc := newTestTMDB(fakeTMDB(t, &calls), 0)

	results, err := svc.Search(context.Background(), models.CategorySeries, "wire")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "The Wire", results[0].Name)
}

func TestTMDBService_SearchMovieIsNotReclassified(t *testing.T) {
	var calls int32
	svc := newTestTMDB(fakeTMDB(t, &calls), 0)

	results, err := svc.Search(context.Background(), models.CategoryMovie, "spirited")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 125, results[0].Runtime)
	assert.Equal(t, "movie", results[0].MediaType)
}

func TestTMDBService_SearchNoResults(t *testing.T) {
	var calls int32
	svc := newTestTMDB(fakeTMDB(t, &calls), 0)

	_, err := svc.Search(context.Background(), models.CategorySeries, "nothing")
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestTMDBService_UpstreamFailureIsNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := newTestTMDB(server, 0)
	_, err := svc.Search(context.Background(), models.CategoryMovie, "x")
	assert.ErrorIs(t, err, ErrNoResults)
	assert.True(t, strings.Contains(err.Error(), "500"))
}

func TestTMDBService_SearchSkipsFailedDetail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/tv", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"id":1},{"id":3}]}`))
	})
	mux.HandleFunc("/tv/1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":1,"name":"Cowboy Bebop","genres":[{"id":16,"name":"Animação"}]}`))
	})
	mux.HandleFunc("/tv/3", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newTestTMDB(server, 0)
	results, err := svc.Search(context.Background(), models.CategoryAnime, "bebop")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Cowboy Bebop", results[0].Name)
}

func TestTMDBService_SearchAllDetailsFailed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/tv", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"id":3}]}`))
	})
	mux.HandleFunc("/tv/3", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newTestTMDB(server, 0)
	_, err := svc.Search(context.Background(), models.CategorySeries, "x")
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestTMDBService_DetailIsCached(t *testing.T) {
	var calls int32
	svc := newTestTMDB(fakeTMDB(t, &calls), time.Minute)

	for i := 0; i < 3; i++ {
		d, err := svc.Detail(context.Background(), models.CategoryAnime, 1)
		require.NoError(t, err)
		assert.Equal(t, "Cowboy Bebop", d.Name)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTMDBService_Trending(t *testing.T) {
	var calls int32
	svc := newTestTMDB(fakeTMDB(t, &calls), 0)

	results, err := svc.Trending(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Spirited Away", results[0].Name)
	assert.Equal(t, "The Wire", results[1].Name)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		title models.CatalogTitle
		want  models.Category
	}{
		{"animation by id", models.CatalogTitle{MediaType: "tv", Genres: []models.Genre{{ID: 16, Name: "Whatever"}}}, models.CategoryAnime},
		{"animation by english name", models.CatalogTitle{MediaType: "tv", Genres: []models.Genre{{Name: "Animation"}}}, models.CategoryAnime},
		{"animation by portuguese name", models.CatalogTitle{MediaType: "tv", Genres: []models.Genre{{Name: "Animação"}}}, models.CategoryAnime},
		{"plain tv", models.CatalogTitle{MediaType: "tv", Genres: []models.Genre{{ID: 18, Name: "Drama"}}}, models.CategorySeries},
		{"no genres", models.CatalogTitle{MediaType: "tv"}, models.CategorySeries},
		{"movie stays movie", models.CatalogTitle{MediaType: "movie", Genres: []models.Genre{{ID: 16}}}, models.CategoryMovie},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.title))
		})
	}
}

func TestTTLCache_Expiry(t *testing.T) {
	c := NewTTLCache(20 * time.Millisecond)
	c.Set("k", 1)

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	time.Sleep(40 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLCache_ZeroTTLDisables(t *testing.T) {
	c := NewTTLCache(0)
	c.Set("k", 1)
	_, ok := c.Get("k")
	assert.False(t, ok)
}
