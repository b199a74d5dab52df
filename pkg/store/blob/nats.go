package blob

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mpapenbr/zenride/log"
)

const DefaultBucket = "zenride"

type natsStorage struct {
	kv jetstream.KeyValue
	l  *log.Logger
}

var _ Storage = (*natsStorage)(nil)

// NewNATSStorage uses a JetStream key/value bucket. The bucket is created if
// it does not exist yet.
//
//nolint:whitespace // editor/linter issue
func NewNATSStorage(
	ctx context.Context,
	nc *nats.Conn,
	bucket string,
) (Storage, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, err
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "zenride drive journal",
		History:     1,
	})
	if err != nil {
		return nil, err
	}
	ret := &natsStorage{kv: kv, l: log.Default().Named("store.blob.nats")}
	ret.l.Debug("using kv bucket", log.String("bucket", bucket))
	return ret, nil
}

func (s *natsStorage) Get(ctx context.Context, key string) ([]byte, error) {
	kve, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return kve.Value(), nil
}

func (s *natsStorage) Put(ctx context.Context, key string, data []byte) error {
	rev, err := s.kv.Put(ctx, key, data)
	if err == nil {
		s.l.Debug("stored blob", log.String("key", key), log.Uint("revision", uint(rev)))
	}
	return err
}

func (s *natsStorage) Delete(ctx context.Context, key string) error {
	err := s.kv.Delete(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}
