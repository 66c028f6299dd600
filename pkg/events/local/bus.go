package local

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/veesix-networks/vppom/pkg/events"
	"github.com/veesix-networks/vppom/pkg/logger"
)

type publishRequest struct {
	topic string
	event events.Event
}

type sub struct {
	bus   *Bus
	topic string
	id    uint64
}

func (s *sub) Unsubscribe() {
	s.bus.removeSub(s.topic, s.id)
}

// allTopics is the internal topic of SubscribeAll handlers.
const allTopics = "*"

type Bus struct {
	ctx       context.Context
	cancel    context.CancelFunc
	subs      map[string]map[uint64]events.Handler
	mu        sync.RWMutex
	nextID    atomic.Uint64
	publishCh chan publishRequest
	logger    *slog.Logger
	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewBus starts a bus that delivers events asynchronously. Handlers of one
// event run concurrently with each other.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 1024
	}
	ctx, cancel := context.WithCancel(context.Background())

	b := &Bus{
		ctx:       ctx,
		cancel:    cancel,
		subs:      make(map[string]map[uint64]events.Handler),
		publishCh: make(chan publishRequest, capacity),
		logger:    logger.Get(logger.Events),
	}

	go b.publishLoop()

	return b
}

var _ events.Bus = (*Bus)(nil)

func (b *Bus) Publish(topic string, event events.Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Type == "" {
		event.Type = topic
	}

	select {
	case b.publishCh <- publishRequest{topic: topic, event: event}:
		b.published.Add(1)
	default:
		b.dropped.Add(1)
		b.logger.Warn("Publish channel full, dropping event", "topic", topic)
	}
}

func (b *Bus) publishLoop() {
	for {
		select {
		case <-b.ctx.Done():
			return
		case req := <-b.publishCh:
			b.mu.RLock()
			handlers := make([]events.Handler, 0, len(b.subs[req.topic])+len(b.subs[allTopics]))
			for _, h := range b.subs[req.topic] {
				handlers = append(handlers, h)
			}
			for _, h := range b.subs[allTopics] {
				handlers = append(handlers, h)
			}
			b.mu.RUnlock()

			for _, h := range handlers {
				go h(req.event)
			}
		}
	}
}

func (b *Bus) Subscribe(topic string, handler events.Handler) events.Subscription {
	id := b.nextID.Add(1)

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]events.Handler)
	}
	b.subs[topic][id] = handler
	handlerCount := len(b.subs[topic])
	b.mu.Unlock()

	b.logger.Debug("Subscribed to topic", "topic", topic, "handler_count", handlerCount)

	return &sub{bus: b, topic: topic, id: id}
}

func (b *Bus) SubscribeAll(handler events.Handler) events.Subscription {
	return b.Subscribe(allTopics, handler)
}

func (b *Bus) removeSub(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if topicSubs, ok := b.subs[topic]; ok {
		delete(topicSubs, id)
		if len(topicSubs) == 0 {
			delete(b.subs, topic)
		}
	}
}

func (b *Bus) Stats() events.Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	topics := make([]events.TopicStats, 0, len(b.subs))
	for topic, subs := range b.subs {
		topics = append(topics, events.TopicStats{
			Topic:       topic,
			Subscribers: len(subs),
		})
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Topic < topics[j].Topic })

	return events.Stats{
		Topics:       topics,
		PublishChLen: len(b.publishCh),
		PublishChCap: cap(b.publishCh),
		Published:    b.published.Load(),
		Dropped:      b.dropped.Load(),
	}
}

func (b *Bus) Close() error {
	b.cancel()
	return nil
}
