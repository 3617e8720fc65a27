// Package fanout delivers auction events to topic subscribers and to
// per-user private channels. Delivery is at-most-once: a subscriber whose
// buffer is full misses the event, and nothing is persisted or replayed.
package fanout

import (
	"sync"
	"time"

	"auction-house/internal/metrics"
	"auction-house/utils"
)

// GlobalTopic carries lifecycle events for every auction
const GlobalTopic = "auctions"

// AuctionTopic is the topic of a single auction
func AuctionTopic(auctionID string) string {
	return "auction:" + auctionID
}

// EventType names what happened
type EventType string

const (
	EventAuctionScheduled EventType = "AUCTION_SCHEDULED"
	EventAuctionStarted   EventType = "AUCTION_STARTED"
	EventAuctionEnded     EventType = "AUCTION_ENDED"
	EventAuctionCancelled EventType = "AUCTION_CANCELLED"
	EventNewBid           EventType = "NEW_BID"
	EventOutbid           EventType = "OUTBID"
	EventAuctionWon       EventType = "AUCTION_WON"
	EventCountdown        EventType = "COUNTDOWN"
	EventEndingSoon       EventType = "ENDING_SOON"
)

// Event is one message on a topic or private channel
type Event struct {
	Type       EventType `json:"type"`
	AuctionID  string    `json:"auction_id,omitempty"`
	Data       any       `json:"data,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent stamps an event with the current time
func NewEvent(eventType EventType, auctionID string, data any) Event {
	return Event{Type: eventType, AuctionID: auctionID, Data: data, OccurredAt: time.Now().UTC()}
}

// Broadcaster is the publish side of the hub
type Broadcaster interface {
	Publish(topic string, event Event) int
	PublishToUser(userID string, event Event) int
}

// Hub keeps the current subscribers of every topic and user channel
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	users  map[string]map[*Subscription]struct{}
	buffer int
}

// Subscription receives events on C until Close is called
type Subscription struct {
	C <-chan Event

	ch     chan Event
	hub    *Hub
	key    string
	user   bool
	closed bool
}

// NewHub creates a hub whose subscriptions buffer up to buffer events
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{
		topics: make(map[string]map[*Subscription]struct{}),
		users:  make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers for every event published to topic from now on
func (h *Hub) Subscribe(topic string) *Subscription {
	return h.add(h.topics, topic, false)
}

// SubscribeUser registers for the private channel of userID
func (h *Hub) SubscribeUser(userID string) *Subscription {
	return h.add(h.users, userID, true)
}

// Publish delivers event to all current subscribers of topic and returns how many received it
func (h *Hub) Publish(topic string, event Event) int {
	return h.deliver(h.topics, topic, event, "topic")
}

// PublishToUser delivers event to the private channel of userID
func (h *Hub) PublishToUser(userID string, event Event) int {
	return h.deliver(h.users, userID, event, "user")
}

// Subscribers returns the number of current subscribers of topic
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Close unregisters the subscription and closes C. Safe to call twice.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	set := h.topics
	if s.user {
		set = h.users
	}
	delete(set[s.key], s)
	if len(set[s.key]) == 0 {
		delete(set, s.key)
	}
	close(s.ch)
}

func (h *Hub) add(set map[string]map[*Subscription]struct{}, key string, user bool) *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{C: ch, ch: ch, hub: h, key: key, user: user}

	h.mu.Lock()
	defer h.mu.Unlock()
	if set[key] == nil {
		set[key] = make(map[*Subscription]struct{})
	}
	set[key][sub] = struct{}{}
	return sub
}

// deliver never blocks: a full subscriber buffer drops the event for that subscriber
func (h *Hub) deliver(set map[string]map[*Subscription]struct{}, key string, event Event, kind string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered, dropped := 0, 0
	for sub := range set[key] {
		select {
		case sub.ch <- event:
			delivered++
		default:
			dropped++
		}
	}

	metrics.RecordFanout(kind, delivered, dropped)
	if dropped > 0 {
		utils.Warn("fanout: dropped event for slow subscribers", map[string]any{
			"kind":       kind,
			"key":        key,
			"event_type": string(event.Type),
			"auction_id": event.AuctionID,
			"dropped":    dropped,
		})
	}
	return delivered
}
