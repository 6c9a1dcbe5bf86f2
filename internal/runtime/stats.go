package runtime

import (
	"sync"
	"time"
)

// HandlerInfo describes a registered handler.
type HandlerInfo struct {
	Name         string
	ConsumeQueue string
	PublishQueue string
	Policies     []string
	Stats        *HandlerStats
}

// Snapshot copies the handler description and its current counters.
func (h *HandlerInfo) Snapshot() HandlerSnapshot {
	return HandlerSnapshot{
		Name:         h.Name,
		ConsumeQueue: h.ConsumeQueue,
		PublishQueue: h.PublishQueue,
		Policies:     append([]string(nil), h.Policies...),
		Stats:        h.Stats.Snapshot(),
	}
}

// HandlerSnapshot is the serialisable form of HandlerInfo.
type HandlerSnapshot struct {
	Name         string        `json:"name"`
	ConsumeQueue string        `json:"consume_queue"`
	PublishQueue string        `json:"publish_queue,omitempty"`
	Policies     []string      `json:"policies,omitempty"`
	Stats        StatsSnapshot `json:"stats"`
}

// StatsSnapshot holds handler counters at a point in time.
type StatsSnapshot struct {
	MessagesProcessed     uint64    `json:"messages_processed"`
	MessagesFailed        uint64    `json:"messages_failed"`
	MessagesUnprocessable uint64    `json:"messages_unprocessable"`
	InFlight              uint64    `json:"in_flight"`
	MaxInFlight           uint64    `json:"max_in_flight"`
	AverageLatencyNs      int64     `json:"average_latency_ns"`
	LastLatencyNs         int64     `json:"last_latency_ns"`
	LastProcessedAt       time.Time `json:"last_processed_at"`
	LastError             string    `json:"last_error,omitempty"`
}

// HandlerStats counts handler invocations. It is safe for concurrent use.
type HandlerStats struct {
	mu sync.Mutex

	processed     uint64
	failed        uint64
	unprocessable uint64
	inFlight      uint64
	maxInFlight   uint64
	totalTime     time.Duration
	lastLatency   time.Duration
	lastProcessed time.Time
	lastError     string
}

func newHandlerStats() *HandlerStats {
	return &HandlerStats{}
}

func (h *HandlerStats) onMessageStart() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.inFlight++
	if h.inFlight > h.maxInFlight {
		h.maxInFlight = h.inFlight
	}
}

func (h *HandlerStats) onMessageFinish(duration time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.inFlight > 0 {
		h.inFlight--
	}
	h.processed++
	h.totalTime += duration
	h.lastLatency = duration
	h.lastProcessed = time.Now().UTC()

	if err != nil {
		h.failed++
		h.lastError = err.Error()
		if IsUnprocessable(err) {
			h.unprocessable++
		}
	}
}

func (h *HandlerStats) Snapshot() StatsSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := StatsSnapshot{
		MessagesProcessed:     h.processed,
		MessagesFailed:        h.failed,
		MessagesUnprocessable: h.unprocessable,
		InFlight:              h.inFlight,
		MaxInFlight:           h.maxInFlight,
		LastLatencyNs:         int64(h.lastLatency),
		LastProcessedAt:       h.lastProcessed,
		LastError:             h.lastError,
	}
	if h.processed > 0 {
		snap.AverageLatencyNs = int64(h.totalTime) / int64(h.processed)
	}
	return snap
}
