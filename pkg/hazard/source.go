package hazard

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/zenride/log"
	"github.com/mpapenbr/zenride/pkg/utils/cache"
	"github.com/mpapenbr/zenride/pkg/utils/cache/loadercache"
)

// Provider hands out the current hazard catalog
type Provider interface {
	Catalog(ctx context.Context) (*Catalog, error)
}

type staticProvider struct {
	c *Catalog
}

func NewStaticProvider(c *Catalog) Provider {
	return &staticProvider{c: c}
}

func (p *staticProvider) Catalog(ctx context.Context) (*Catalog, error) {
	return p.c, nil
}

// FileSource loads the catalog from a feed file. The loaded catalog is cached
// and reloaded when the file changes (see Watch) or the cache entry expires.
type FileSource struct {
	path       string
	selector   string
	expiration time.Duration
	cache      cache.Cache[string, Catalog]
	l          *log.Logger
	mu         sync.Mutex
	last       *Catalog
	handlers   []func(*Catalog)
}

type FileSourceOption func(s *FileSource)

func WithSelector(selector string) FileSourceOption {
	return func(s *FileSource) {
		s.selector = selector
	}
}

// WithExpiration forces a reload after d even without file change events.
// 0 keeps the catalog until the file changes.
func WithExpiration(d time.Duration) FileSourceOption {
	return func(s *FileSource) {
		s.expiration = d
	}
}

// WithChangeHandler registers a callback which receives every reloaded catalog
func WithChangeHandler(f func(*Catalog)) FileSourceOption {
	return func(s *FileSource) {
		s.handlers = append(s.handlers, f)
	}
}

var _ Provider = (*FileSource)(nil)

func NewFileSource(path string, opts ...FileSourceOption) *FileSource {
	s := &FileSource{
		path: filepath.Clean(path),
		l:    log.Default().Named("hazard.source"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = loadercache.New(
		loadercache.WithExpiration[string, Catalog](s.expiration),
		loadercache.WithLogger[string, Catalog](s.l),
		loadercache.WithLoader[string, Catalog](s.load),
	)
	return s
}

func (s *FileSource) load(ctx context.Context, path string) (*Catalog, error) {
	hazards, err := LoadFile(path, s.selector)
	if err != nil {
		return nil, err
	}
	s.l.Info("hazard catalog loaded",
		log.String("path", path), log.Int("hazards", len(hazards)))
	return NewCatalog(hazards), nil
}

// Catalog returns the current catalog. If a reload fails the last
// successfully loaded catalog is returned.
func (s *FileSource) Catalog(ctx context.Context) (*Catalog, error) {
	c, err := s.cache.Get(ctx, s.path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.last != nil {
			return s.last, nil
		}
		return nil, err
	}
	s.last = c
	return c, nil
}

// Watch observes the feed file until ctx is done. On change the cached
// catalog is dropped, reloaded and handed to the change handlers.
// The directory is watched since editors often replace files instead of
// writing them.
func (s *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != s.path ||
					!(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					continue
				}
				s.reload(ctx)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.l.Warn("watch error", log.ErrorField(err))
			}
		}
	}()
	return nil
}

func (s *FileSource) reload(ctx context.Context) {
	s.cache.Invalidate(ctx, s.path)
	c, err := s.cache.Get(ctx, s.path)
	if err != nil {
		s.l.Warn("could not reload hazard catalog, keeping previous one",
			log.ErrorField(err))
		return
	}
	s.mu.Lock()
	s.last = c
	s.mu.Unlock()
	for _, h := range s.handlers {
		h(c)
	}
}
