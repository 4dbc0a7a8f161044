package server

import (
	"context"
	"sync"
	"time"
)

const (
	RealtimeEventCardsChanged = "cards-changed"
	realtimeEventHeartbeat    = "heartbeat"
	realtimeEventReady        = "ready"
	realtimeSourceBackend     = "memcard-backend"
	defaultSubscriberBuffer   = 16
)

// RealtimeMessage notifies the sessions of one account that its collection changed.
type RealtimeMessage struct {
	AccountID string
	EventType string
	CardCount int
	Timestamp time.Time
}

// RealtimeDispatcher fans messages out to the subscribers of each account.
// Slow subscribers drop messages instead of blocking publishers.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[string]map[int64]*realtimeSubscriber),
		bufferSize:  defaultSubscriberBuffer,
	}
}

// Subscribe registers a stream for accountID until ctx ends or the returned
// cancel function runs.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context, accountID string) (<-chan RealtimeMessage, func()) {
	if accountID == "" {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}
	subscriber := &realtimeSubscriber{stream: make(chan RealtimeMessage, d.bufferSize)}
	d.register(accountID, subscriber)

	var once sync.Once
	cleanup := func() {
		once.Do(func() { d.unregister(accountID, subscriber.id) })
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers message to every current subscriber of its account.
func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.AccountID == "" || message.EventType == "" {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, subscriber := range d.subscribers[message.AccountID] {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

// SubscriberCount returns how many streams accountID currently has open.
func (d *RealtimeDispatcher) SubscriberCount(accountID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[accountID])
}

func (d *RealtimeDispatcher) register(accountID string, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	subscriber.id = d.nextID
	if _, ok := d.subscribers[accountID]; !ok {
		d.subscribers[accountID] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[accountID][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregister(accountID string, subscriberID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	subscribers := d.subscribers[accountID]
	if subscribers == nil {
		return
	}
	delete(subscribers, subscriberID)
	if len(subscribers) == 0 {
		delete(d.subscribers, accountID)
	}
}
