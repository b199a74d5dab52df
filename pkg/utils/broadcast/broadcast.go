package broadcast

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/zenride/log"
)

// Server fans out the messages of a source channel to all subscribers.
type Server[T any] interface {
	Subscribe() <-chan T
	CancelSubscription(<-chan T)
	// Close stops the server and closes all subscriber channels.
	Close()
}

type server[T any] struct {
	name           string
	source         <-chan T
	listeners      []chan T
	addListener    chan chan T
	removeListener chan (<-chan T)
	ctx            context.Context
	cancel         context.CancelFunc
	done           chan struct{}
	sendTimeout    time.Duration
	bufferSize     int
	l              *log.Logger

	numRcv       atomic.Int64
	numSnd       atomic.Int64
	numSkip      atomic.Int64
	numListeners atomic.Int64
	registration metric.Registration
}

type Option[T any] func(*server[T])

// WithSendTimeout sets how long a slow subscriber may block a message
// before it is skipped for this message.
func WithSendTimeout[T any](d time.Duration) Option[T] {
	return func(s *server[T]) {
		s.sendTimeout = d
	}
}

func WithBufferSize[T any](n int) Option[T] {
	return func(s *server[T]) {
		s.bufferSize = n
	}
}

func NewServer[T any](name string, source <-chan T, opts ...Option[T]) Server[T] {
	ctx, cancel := context.WithCancel(context.Background())
	s := &server[T]{
		name:           name,
		source:         source,
		addListener:    make(chan chan T),
		removeListener: make(chan (<-chan T)),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
		sendTimeout:    50 * time.Millisecond,
		bufferSize:     16,
		l:              log.Default().Named("broadcast"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupMetrics()
	go s.serve()
	return s
}

func (s *server[T]) Subscribe() <-chan T {
	ch := make(chan T, s.bufferSize)
	select {
	case s.addListener <- ch:
	case <-s.done:
		close(ch)
	}
	return ch
}

func (s *server[T]) CancelSubscription(ch <-chan T) {
	select {
	case s.removeListener <- ch:
	case <-s.done:
	}
}

func (s *server[T]) Close() {
	s.cancel()
	<-s.done
	if s.registration != nil {
		if err := s.registration.Unregister(); err != nil {
			s.l.Warn("failed to unregister metrics", log.ErrorField(err))
		}
	}
	s.l.Info("broadcast server closed",
		log.String("name", s.name),
		log.Int64("rcv", s.numRcv.Load()),
		log.Int64("snd", s.numSnd.Load()),
		log.Int64("skip", s.numSkip.Load()))
}

func (s *server[T]) setupMetrics() {
	meter := otel.GetMeterProvider().Meter(fmt.Sprintf("zenride.broadcast.%s", s.name))
	type data struct {
		name  string
		desc  string
		value *atomic.Int64
		inst  metric.Int64ObservableGauge
	}
	gauges := []*data{
		{name: "zenride.broadcast.rcv", desc: "Number of received messages", value: &s.numRcv},
		{name: "zenride.broadcast.snd", desc: "Number of sent messages", value: &s.numSnd},
		{name: "zenride.broadcast.skip", desc: "Number of skipped messages", value: &s.numSkip},
		{name: "zenride.broadcast.listener", desc: "Number of listeners", value: &s.numListeners},
	}
	instruments := make([]metric.Observable, 0, len(gauges))
	for _, d := range gauges {
		var err error
		if d.inst, err = meter.Int64ObservableGauge(d.name,
			metric.WithDescription(d.desc),
			metric.WithUnit("{count}")); err != nil {
			s.l.Error("failed to register metric",
				log.String("metric", d.name), log.ErrorField(err))
			return
		}
		instruments = append(instruments, d.inst)
	}
	attrs := metric.WithAttributes(attribute.String("name", s.name))
	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for _, d := range gauges {
			o.ObserveInt64(d.inst, d.value.Load(), attrs)
		}
		return nil
	}, instruments...)
	if err != nil {
		s.l.Error("failed to register metric callback", log.ErrorField(err))
		return
	}
	s.registration = reg
}

//nolint:gocognit // by design
func (s *server[T]) serve() {
	defer func() {
		for _, listener := range s.listeners {
			close(listener)
		}
		s.listeners = nil
		close(s.done)
	}()
	for {
		select {
		case <-s.ctx.Done():
			s.l.Debug("broadcast server about to be closed", log.String("name", s.name))
			return
		case ch := <-s.addListener:
			s.listeners = append(s.listeners, ch)
			s.numListeners.Store(int64(len(s.listeners)))
		case ch := <-s.removeListener:
			for i, listener := range s.listeners {
				if listener == ch {
					s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
					close(listener)
					break
				}
			}
			s.numListeners.Store(int64(len(s.listeners)))
		case msg, ok := <-s.source:
			if !ok {
				s.l.Debug("source closed", log.String("name", s.name))
				return
			}
			s.numRcv.Add(1)
			for _, listener := range s.listeners {
				select {
				case listener <- msg:
					s.numSnd.Add(1)
				case <-time.After(s.sendTimeout):
					s.numSkip.Add(1)
				}
			}
		}
	}
}
