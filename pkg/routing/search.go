package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/mpapenbr/zenride/log"
	"github.com/mpapenbr/zenride/pkg/geo"
)

// SearchResult is a destination candidate returned by a text search
type SearchResult struct {
	Name     string         `json:"name"`
	Address  string         `json:"address"`
	Location geo.Coordinate `json:"location"`
}

// Searcher resolves a free text query near a position
type Searcher interface {
	Search(ctx context.Context, query string, near geo.Coordinate) ([]SearchResult, error)
}

type tomtomSearchResponse struct {
	Results []struct {
		Poi *struct {
			Name string `json:"name"`
		} `json:"poi"`
		Address struct {
			FreeformAddress string `json:"freeformAddress"`
		} `json:"address"`
		Position struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"position"`
	} `json:"results"`
}

var _ Searcher = (*HTTPClient)(nil)

// DecodeSearchResponse converts a search response body into results
func DecodeSearchResponse(data []byte) ([]SearchResult, error) {
	var resp tomtomSearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, newError(KindDecode, err)
	}
	ret := make([]SearchResult, 0, len(resp.Results))
	for i := range resp.Results {
		r := &resp.Results[i]
		name := r.Address.FreeformAddress
		if r.Poi != nil && r.Poi.Name != "" {
			name = r.Poi.Name
		}
		ret = append(ret, SearchResult{
			Name:     name,
			Address:  r.Address.FreeformAddress,
			Location: geo.Coordinate{Lat: r.Position.Lat, Lng: r.Position.Lon},
		})
	}
	return ret, nil
}

//nolint:whitespace // editor/linter issue
func (c *HTTPClient) Search(
	ctx context.Context, query string, near geo.Coordinate,
) ([]SearchResult, error) {
	if c.apiKey == "" {
		return nil, newError(KindConfig, fmt.Errorf("missing routing api key"))
	}
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("lat", strconv.FormatFloat(near.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(near.Lng, 'f', -1, 64))
	q.Set("limit", "10")
	q.Set("language", c.language)
	u := fmt.Sprintf("%s/search/2/search/%s.json?%s",
		c.baseURL, url.PathEscape(query), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, newError(KindConfig, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, newError(KindNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, newError(KindNetwork, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindNetwork, err)
	}
	return DecodeSearchResponse(data)
}

// Debouncer delays execution of submitted work until no newer submission
// arrived within the delay. Only the latest submission runs; the context of
// a superseded run is cancelled.
type Debouncer struct {
	delay time.Duration
	l     *log.Logger

	mu     sync.Mutex
	timer  *time.Timer
	cancel context.CancelFunc
	seq    uint64
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay, l: log.Default().Named("routing.debounce")}
}

// Submit schedules fn. Pending or running work from earlier calls is
// cancelled.
func (d *Debouncer) Submit(ctx context.Context, fn func(ctx context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.seq++
	seq := d.seq
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		current := seq == d.seq
		d.mu.Unlock()
		if !current || runCtx.Err() != nil {
			return
		}
		d.l.Debug("running debounced work", log.Uint("seq", uint(seq)))
		fn(runCtx)
	})
}

// Stop cancels pending and running work
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.seq++
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

// DebouncedSearch runs searches through a Debouncer and hands the results of
// the latest query to a callback
type DebouncedSearch struct {
	searcher  Searcher
	debouncer *Debouncer
}

func NewDebouncedSearch(s Searcher, delay time.Duration) *DebouncedSearch {
	return &DebouncedSearch{searcher: s, debouncer: NewDebouncer(delay)}
}

// Query schedules a search. The callback is not invoked for superseded
// queries.
//
//nolint:whitespace // editor/linter issue
func (s *DebouncedSearch) Query(
	ctx context.Context,
	query string,
	near geo.Coordinate,
	cb func([]SearchResult, error),
) {
	s.debouncer.Submit(ctx, func(runCtx context.Context) {
		res, err := s.searcher.Search(runCtx, query, near)
		if runCtx.Err() != nil {
			return
		}
		cb(res, err)
	})
}

func (s *DebouncedSearch) Close() {
	s.debouncer.Stop()
}
