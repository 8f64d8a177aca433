package server

import (
	"context"
	"sync"
	"time"
)

const (
	// RealtimeEventDiveChanged notifies dashboards that a dive row was
	// created, completed or deleted.
	RealtimeEventDiveChanged = "dive-change"
	realtimeEventHeartbeat   = "heartbeat"
)

// RealtimeMessage is one entry of the dive change feed.
type RealtimeMessage struct {
	EventType string
	DiveID    string
	Timestamp time.Time
}

// RealtimeDispatcher broadcasts dive change notifications to every connected
// dashboard. Publishing never blocks; a slow subscriber drops messages rather
// than stalling the feed.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]chan RealtimeMessage
	nextID      int64
	bufferSize  int
}

// NewRealtimeDispatcher constructs an empty dispatcher.
func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[int64]chan RealtimeMessage),
		bufferSize:  16,
	}
}

// Subscribe registers a listener; the stream closes when the context is
// cancelled or the cleanup function runs.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context) (<-chan RealtimeMessage, func()) {
	stream := make(chan RealtimeMessage, d.bufferSize)

	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subscribers[id] = stream
	d.mu.Unlock()

	cleanup := func() {
		d.mu.Lock()
		delete(d.subscribers, id)
		d.mu.Unlock()
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return stream, cleanup
}

// Publish fans the message out to every subscriber without blocking.
func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.EventType == "" {
		return
	}
	d.mu.RLock()
	streams := make([]chan RealtimeMessage, 0, len(d.subscribers))
	for _, stream := range d.subscribers {
		streams = append(streams, stream)
	}
	d.mu.RUnlock()
	for _, stream := range streams {
		select {
		case stream <- message:
		default:
		}
	}
}
