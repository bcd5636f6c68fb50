// Package redisfeed is a feed.Backend shared between processes through
// Redis. Documents live as JSON in one hash, each user has a sorted set
// of ids scored by timestamp, and every write is announced on a per-user
// Pub/Sub channel.
package redisfeed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	gosync "sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nhle/campusnotify/internal/feed"
	"github.com/nhle/campusnotify/internal/model"
)

const defaultPrefix = "campusnotify"

// markReadScript overwrites a document only while it still exists, so a
// concurrent Delete cannot be undone by a late write.
var markReadScript = redis.NewScript(`
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// envelope is the message published on a user's change channel.
type envelope struct {
	Kind string         `json:"kind"`
	ID   string         `json:"id"`
	Doc  map[string]any `json:"doc,omitempty"`
}

// Backend implements feed.Backend on a Redis client.
type Backend struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

var _ feed.Backend = (*Backend)(nil)

// New wraps client. An empty prefix uses "campusnotify".
func New(client *redis.Client, prefix string, logger zerolog.Logger) *Backend {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Backend{
		client: client,
		prefix: prefix,
		logger: logger.With().Str("component", "redis_feed").Logger(),
	}
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}
	return client, nil
}

func (b *Backend) docsKey() string { return b.prefix + ":notifications" }

func (b *Backend) indexKey(userID string) string {
	return fmt.Sprintf("%s:user:%s:notifications", b.prefix, userID)
}

func (b *Backend) channel(userID string) string {
	return fmt.Sprintf("%s:user:%s:changes", b.prefix, userID)
}

// List returns the user's notifications, newest first, skipping
// documents that do not decode.
func (b *Backend) List(ctx context.Context, userID string) ([]model.Notification, error) {
	ids, err := b.client.ZRevRange(ctx, b.indexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading index for %s: %w", userID, err)
	}
	if len(ids) == 0 {
		return []model.Notification{}, nil
	}

	vals, err := b.client.HMGet(ctx, b.docsKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading documents for %s: %w", userID, err)
	}

	docs := make([]map[string]any, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			b.logger.Warn().Str("id", ids[i]).Msg("index entry without document")
			continue
		}
		doc, err := unmarshalDoc([]byte(raw))
		if err != nil {
			b.logger.Warn().Str("id", ids[i]).Err(err).Msg("undecodable document")
			continue
		}
		docs = append(docs, doc)
	}

	return feed.DecodeAll(docs), nil
}

// Subscribe listens on the user's change channel, then replays the
// current snapshot ahead of live events.
func (b *Backend) Subscribe(ctx context.Context, userID string) (feed.Subscription, error) {
	pubsub := b.client.Subscribe(ctx, b.channel(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", b.channel(userID), err)
	}

	current, err := b.List(ctx, userID)
	if err != nil {
		pubsub.Close()
		return nil, err
	}

	s := &subscription{
		pubsub: pubsub,
		out:    make(chan feed.Event),
		done:   make(chan struct{}),
		logger: b.logger,
	}
	go s.run(current)
	return s, nil
}

// MarkRead rewrites the stored document with isRead set.
func (b *Backend) MarkRead(ctx context.Context, id string) error {
	doc, err := b.getDoc(ctx, id)
	if err != nil {
		return err
	}
	doc["isRead"] = true

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding notification %s: %w", id, err)
	}
	written, err := markReadScript.Run(ctx, b.client, []string{b.docsKey()}, id, data).Int()
	if err != nil {
		return fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	if written == 0 {
		return fmt.Errorf("marking notification %s as read: %w", id, feed.ErrNotFound)
	}

	userID, _ := doc["userId"].(string)
	b.publish(ctx, userID, envelope{Kind: feed.EventModified.String(), ID: id, Doc: doc})
	return nil
}

// Delete removes the document and its index entry.
func (b *Backend) Delete(ctx context.Context, id string) error {
	doc, err := b.getDoc(ctx, id)
	if err != nil {
		return err
	}
	userID, _ := doc["userId"].(string)

	var removed *redis.IntCmd
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.HDel(ctx, b.docsKey(), id)
		pipe.ZRem(ctx, b.indexKey(userID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	if removed.Val() == 0 {
		return fmt.Errorf("deleting notification %s: %w", id, feed.ErrNotFound)
	}

	b.publish(ctx, userID, envelope{Kind: feed.EventRemoved.String(), ID: id})
	return nil
}

// Create stores n under a fresh UUID.
func (b *Backend) Create(ctx context.Context, userID string, n model.Notification) (model.Notification, error) {
	n.ID = uuid.New().String()
	if n.Timestamp == 0 {
		n.Timestamp = model.NowMillis()
	}
	if n.Type == "" {
		n.Type = model.TypeGeneral
	}

	doc := feed.Encode(userID, n)
	data, err := json.Marshal(doc)
	if err != nil {
		return model.Notification{}, fmt.Errorf("encoding notification: %w", err)
	}

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, b.docsKey(), n.ID, data)
		pipe.ZAdd(ctx, b.indexKey(userID), redis.Z{Score: float64(n.Timestamp), Member: n.ID})
		return nil
	})
	if err != nil {
		return model.Notification{}, fmt.Errorf("creating notification: %w", err)
	}

	b.publish(ctx, userID, envelope{Kind: feed.EventAdded.String(), ID: n.ID, Doc: doc})
	return n, nil
}

func (b *Backend) getDoc(ctx context.Context, id string) (map[string]any, error) {
	raw, err := b.client.HGet(ctx, b.docsKey(), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("getting notification %s: %w", id, feed.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification %s: %w", id, err)
	}
	doc, err := unmarshalDoc(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding notification %s: %w", id, err)
	}
	return doc, nil
}

// publish is best effort: the write already happened, so a failed
// announcement is logged rather than returned.
func (b *Backend) publish(ctx context.Context, userID string, env envelope) {
	if userID == "" {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		b.logger.Error().Err(err).Str("id", env.ID).Msg("encoding change envelope")
		return
	}
	if err := b.client.Publish(ctx, b.channel(userID), data).Err(); err != nil {
		b.logger.Error().Err(err).Str("id", env.ID).Msg("publishing change")
	}
}

// unmarshalDoc keeps numbers as json.Number so integer timestamps survive.
func unmarshalDoc(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// subscription adapts a redis PubSub into a feed.Subscription.
type subscription struct {
	pubsub    *redis.PubSub
	out       chan feed.Event
	done      chan struct{}
	closeOnce gosync.Once
	logger    zerolog.Logger
}

func (s *subscription) run(snapshot []model.Notification) {
	defer close(s.out)

	for _, n := range snapshot {
		if !s.send(feed.Added(n)) {
			return
		}
	}

	msgs := s.pubsub.Channel()
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			ev, err := decodeEnvelope([]byte(msg.Payload))
			if err != nil {
				s.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping change message")
				continue
			}
			if !s.send(ev) {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *subscription) send(ev feed.Event) bool {
	select {
	case s.out <- ev:
		return true
	case <-s.done:
		return false
	}
}

// Events returns the event stream.
func (s *subscription) Events() <-chan feed.Event {
	return s.out
}

// Close unsubscribes and ends the stream.
func (s *subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

// decodeEnvelope turns a published message back into an event. Added and
// modified envelopes must carry a document that decodes.
func decodeEnvelope(data []byte) (feed.Event, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return feed.Event{}, fmt.Errorf("decoding envelope: %w", err)
	}

	switch env.Kind {
	case feed.EventRemoved.String():
		if env.ID == "" {
			return feed.Event{}, fmt.Errorf("removed envelope without id")
		}
		return feed.Removed(env.ID), nil
	case feed.EventAdded.String(), feed.EventModified.String():
		n, err := feed.Decode(env.Doc)
		if err != nil {
			return feed.Event{}, err
		}
		if env.Kind == feed.EventAdded.String() {
			return feed.Added(n), nil
		}
		return feed.Modified(n), nil
	default:
		return feed.Event{}, fmt.Errorf("unknown envelope kind %q", env.Kind)
	}
}
