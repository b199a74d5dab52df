package routing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/zenride/pkg/geo"
)

const searchResponse = `{
  "results": [
    {
      "poi": {"name": "Central Park"},
      "address": {"freeformAddress": "New York, NY"},
      "position": {"lat": 40.78, "lon": -73.96}
    },
    {
      "address": {"freeformAddress": "5th Ave, New York, NY"},
      "position": {"lat": 40.77, "lon": -73.97}
    }
  ]
}`

func TestDecodeSearchResponse(t *testing.T) {
	res, err := DecodeSearchResponse([]byte(searchResponse))
	require.NoError(t, err)
	assert.Equal(t, []SearchResult{
		{Name: "Central Park", Address: "New York, NY", Location: geo.Coordinate{Lat: 40.78, Lng: -73.96}},
		{
			Name:     "5th Ave, New York, NY",
			Address:  "5th Ave, New York, NY",
			Location: geo.Coordinate{Lat: 40.77, Lng: -73.97},
		},
	}, res)

	_, err = DecodeSearchResponse([]byte("nope"))
	assert.True(t, IsKind(err, KindDecode))
}

func TestHTTPClientSearch(t *testing.T) {
	paths := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		//nolint:errcheck // test server
		w.Write([]byte(searchResponse))
	}))
	defer srv.Close()

	c := NewHTTPClient(WithBaseURL(srv.URL), WithAPIKey("k"), WithHTTPClient(srv.Client()))
	res, err := c.Search(context.Background(), "central park", geo.Coordinate{Lat: 40.7, Lng: -74})
	require.NoError(t, err)
	assert.Len(t, res, 2)
	assert.Equal(t, "/search/2/search/central park.json", <-paths)
}

type recorder struct {
	mu  sync.Mutex
	ran []int
}

func (r *recorder) add(i int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, i)
}

func (r *recorder) get() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int{}, r.ran...)
}

func TestDebouncerRunsLatestOnly(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	rec := &recorder{}
	for i := 1; i <= 3; i++ {
		d.Submit(context.Background(), func(ctx context.Context) { rec.add(i) })
	}
	assert.Eventually(t, func() bool { return len(rec.get()) > 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []int{3}, rec.get())
}

func TestDebouncerStop(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	rec := &recorder{}
	d.Submit(context.Background(), func(ctx context.Context) { rec.add(1) })
	d.Stop()
	assert.Never(t, func() bool { return len(rec.get()) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

type stubSearcher struct{}

//nolint:whitespace // editor/linter issue
func (stubSearcher) Search(
	ctx context.Context, query string, near geo.Coordinate,
) ([]SearchResult, error) {
	return []SearchResult{{Name: query, Location: near}}, nil
}

func TestDebouncedSearch(t *testing.T) {
	s := NewDebouncedSearch(stubSearcher{}, 20*time.Millisecond)
	defer s.Close()
	got := make(chan []SearchResult, 3)
	for _, q := range []string{"c", "ce", "cen"} {
		s.Query(context.Background(), q, geo.Coordinate{}, func(res []SearchResult, err error) {
			got <- res
		})
	}
	select {
	case res := <-got:
		require.Len(t, res, 1)
		assert.Equal(t, "cen", res[0].Name)
	case <-time.After(time.Second):
		t.Fatal("no search result")
	}
	assert.Empty(t, got)
}
