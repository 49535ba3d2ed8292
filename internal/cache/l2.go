package cache

import (
	"context"
	"encoding/json"
	"time"

	"hvac-cache/internal/circuitbreaker"
	"hvac-cache/internal/common/errors"
	"hvac-cache/internal/common/logging"
	"hvac-cache/internal/observability"
	"hvac-cache/internal/redis"
)

// l2ContextTag identifies this store in failure reports.
const l2ContextTag = "cache-l2"

// envelope is the serialized form every L2 entry is stored as.
type envelope struct {
	Data     json.RawMessage  `json:"data"`
	Metadata envelopeMetadata `json:"metadata"`
}

type envelopeMetadata struct {
	Timestamp time.Time     `json:"timestamp"`
	TTL       time.Duration `json:"ttl"`
	Tags      []string      `json:"tags,omitempty"`
	Size      int           `json:"size"`
	Tier      string        `json:"tier"`
}

// l2Store is the networked shared tier backed by Redis. Every operation is
// fail-open: network and serialization problems are reported to the sink and
// surfaced to the orchestrator as a miss or no-op, never as an error.
type l2Store struct {
	client  *redis.Client
	breaker *circuitbreaker.Breaker
	sink    observability.Sink
	logger  logging.Logger
	prefix  string
	timeout time.Duration
}

func newL2Store(client *redis.Client, prefix string, timeout time.Duration, sink observability.Sink, logger logging.Logger) *l2Store {
	return &l2Store{
		client:  client,
		breaker: circuitbreaker.New("l2-redis", circuitbreaker.DefaultConfig(), logger),
		sink:    sink,
		logger:  logger,
		prefix:  prefix,
		timeout: timeout,
	}
}

// storeErr classifies a failed store call: an expired per-op deadline is a
// timeout, anything else is a connectivity failure.
func storeErr(opCtx context.Context, operation, msg string, cause error) *errors.AppError {
	if opCtx.Err() == context.DeadlineExceeded {
		return errors.TimeoutError(operation)
	}
	return errors.ConnectivityError(msg, cause)
}

func (s *l2Store) entryKey(key string) string {
	return s.prefix + ":entry:" + key
}

func (s *l2Store) tagKey(tag string) string {
	return s.prefix + ":tag:" + tag
}

// get fetches and decodes the envelope for key. Any failure is a miss.
func (s *l2Store) get(ctx context.Context, key string) (*Entry, bool) {
	var env envelope
	var found bool

	// A plain miss returns nil from the closure: redis.Nil is an answer,
	// not a failure, and must not count against the breaker.
	err := s.breaker.Execute(ctx, func() error {
		opCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		data, err := s.client.Get(opCtx, s.entryKey(key))
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return storeErr(opCtx, "l2 read", "failed to read from redis", err)
		}

		if err := json.Unmarshal(data, &env); err != nil {
			return errors.SerializationError("failed to decode cache envelope", err)
		}
		found = true
		return nil
	})

	if err != nil {
		s.report("l2_get", key, err)
		if errors.IsType(err, errors.ErrTypeSerialization) {
			// Drop the corrupt envelope so it cannot poison future reads
			s.deleteSilently(key)
		}
		return nil, false
	}
	if !found {
		return nil, false
	}

	return &Entry{
		Data:      env.Data,
		Timestamp: env.Metadata.Timestamp,
		TTL:       env.Metadata.TTL,
		Tags:      env.Metadata.Tags,
		Size:      env.Metadata.Size,
		Tier:      ParseTier(env.Metadata.Tier),
	}, true
}

// set writes the entry envelope with an expiry equal to its TTL (whole
// seconds, rounded down) and registers the key in each tag's set.
//
// The write runs on a detached context so a caller abandoning the request
// cannot leave a partially-applied write behind.
func (s *l2Store) set(key string, entry *Entry) {
	env := envelope{
		Data: entry.Data,
		Metadata: envelopeMetadata{
			Timestamp: entry.Timestamp,
			TTL:       entry.TTL,
			Tags:      entry.Tags,
			Size:      entry.Size,
			Tier:      entry.Tier.String(),
		},
	}

	data, err := json.Marshal(env)
	if err != nil {
		s.report("l2_set", key, errors.SerializationError("failed to encode cache envelope", err))
		return
	}

	expiry := time.Duration(int64(entry.TTL.Seconds())) * time.Second
	if expiry < time.Second {
		// Redis treats a zero expiration as "keep forever"; a sub-second TTL
		// must still expire, so round it up to the 1s resolution floor.
		expiry = time.Second
	}

	err = s.breaker.Execute(context.Background(), func() error {
		opCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := s.client.Set(opCtx, s.entryKey(key), data, expiry); err != nil {
			return storeErr(opCtx, "l2 write", "failed to write to redis", err)
		}

		for _, tag := range entry.Tags {
			if err := s.client.SAdd(opCtx, s.tagKey(tag), key); err != nil {
				return storeErr(opCtx, "l2 write", "failed to register tag", err).WithContext("tag", tag)
			}
			if err := s.client.Expire(opCtx, s.tagKey(tag), expiry); err != nil {
				return storeErr(opCtx, "l2 write", "failed to expire tag set", err).WithContext("tag", tag)
			}
		}
		return nil
	})

	if err != nil {
		s.report("l2_set", key, err)
	}
}

// delete removes the entry and reports whether it existed.
func (s *l2Store) delete(ctx context.Context, key string) bool {
	var existed bool

	err := s.breaker.Execute(ctx, func() error {
		opCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		count, err := s.client.Del(opCtx, s.entryKey(key))
		if err != nil {
			return storeErr(opCtx, "l2 delete", "failed to delete from redis", err)
		}
		existed = count > 0
		return nil
	})

	if err != nil {
		s.report("l2_delete", key, err)
		return false
	}

	return existed
}

// invalidateByTags resolves each tag's key set and deletes the referenced
// entries plus the tag set itself. Returns the number of entries it is sure
// it removed; partial failures reduce the count, never raise.
func (s *l2Store) invalidateByTags(ctx context.Context, tags []string) int {
	removed := 0

	for _, tag := range tags {
		var count int64

		err := s.breaker.Execute(ctx, func() error {
			opCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			members, err := s.client.SMembers(opCtx, s.tagKey(tag))
			if err != nil {
				return storeErr(opCtx, "l2 invalidate", "failed to resolve tag members", err).WithContext("tag", tag)
			}

			keys := make([]string, 0, len(members))
			for _, member := range members {
				keys = append(keys, s.entryKey(member))
			}

			count, err = s.client.Del(opCtx, keys...)
			if err != nil {
				return storeErr(opCtx, "l2 invalidate", "failed to delete tagged keys", err).WithContext("tag", tag)
			}

			if _, err := s.client.Del(opCtx, s.tagKey(tag)); err != nil {
				return storeErr(opCtx, "l2 invalidate", "failed to delete tag set", err).WithContext("tag", tag)
			}
			return nil
		})

		if err != nil {
			s.report("l2_invalidate_tags", tag, err)
			continue
		}

		removed += int(count)
	}

	return removed
}

// flush removes every key in this engine's namespace.
func (s *l2Store) flush(ctx context.Context) error {
	return s.breaker.Execute(ctx, func() error {
		opCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		if _, err := s.client.DeleteByPattern(opCtx, s.prefix+":*"); err != nil {
			return storeErr(opCtx, "l2 flush", "failed to flush cache namespace", err)
		}
		return nil
	})
}

// deleteSilently drops a key without reporting. Used after decode failures.
func (s *l2Store) deleteSilently(key string) {
	opCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.client.Del(opCtx, s.entryKey(key)); err != nil {
		s.logger.Debug("Failed to drop corrupt cache entry",
			logging.Field{Key: "key", Value: key},
			logging.Field{Key: "error", Value: err.Error()},
		)
	}
}

func (s *l2Store) report(operation, key string, err error) {
	s.logger.Warn("L2 cache operation degraded to miss",
		logging.Field{Key: "operation", Value: operation},
		logging.Field{Key: "key", Value: key},
		logging.Field{Key: "error", Value: err.Error()},
	)
	s.sink.Report(observability.NewReport(operation, key, l2ContextTag, err))
}
