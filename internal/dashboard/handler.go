package dashboard

import (
	"encoding/json"
	"log"
	"maps"
	"os"
	"sync"
	"time"

	"github.com/marksync/marksync/internal/cache"
	"github.com/marksync/marksync/internal/eventlog"
	"github.com/marksync/marksync/internal/tree"
)

var (
	_ eventlog.Sink  = (*Handler)(nil)
	_ cache.Observer = (*Handler)(nil)
)

// Handler turns cache activity into dashboard messages. It is an
// eventlog.Sink for the events logged before each operation and a
// cache.Observer for the changes that succeed.
type Handler struct {
	server *Server
	logger *log.Logger

	mu    sync.Mutex
	stats StatsData
}

// NewHandler creates a new event handler connected to a dashboard server.
// New clients are greeted with the current statistics.
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(os.Stderr, "[dashboard] ", log.LstdFlags)
	}

	h := &Handler{
		server: server,
		logger: logger,
		stats: StatsData{
			ByEvent: make(map[string]int),
		},
	}
	server.setWelcome(h.statsMessage)
	return h
}

// Log implements eventlog.Sink.
func (h *Handler) Log(event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("Failed to marshal %s payload: %v", event, err)
		raw = nil
	}

	h.mu.Lock()
	h.stats.Events++
	h.stats.ByEvent[event]++
	h.mu.Unlock()

	h.send(MessageTypeEvent, EventData{Event: event, Payload: raw})
}

// Changed implements cache.Observer.
func (h *Handler) Changed(c cache.Change) {
	h.mu.Lock()
	h.stats.Changes++
	h.stats.Nodes = c.Nodes
	h.mu.Unlock()

	h.send(MessageTypeChange, ChangeData{Event: c.Event, ID: c.ID, Nodes: c.Nodes})
	h.server.Broadcast(h.statsMessage())
}

// OnImport reports a snapshot file processed by the import daemon. A nil err
// means the import succeeded.
func (h *Handler) OnImport(path string, target tree.ID, nodes int, err error) {
	data := ImportData{Path: path, Target: target, Nodes: nodes}
	if err != nil {
		data.Error = err.Error()
		h.mu.Lock()
		h.stats.FailedImports++
		h.mu.Unlock()
	}
	h.send(MessageTypeImport, data)
}

// SetNodes seeds the node count, e.g. after loading an initial snapshot.
func (h *Handler) SetNodes(n int) {
	h.mu.Lock()
	h.stats.Nodes = n
	h.mu.Unlock()
	h.server.Broadcast(h.statsMessage())
}

// GetStats returns a copy of the current statistics
func (h *Handler) GetStats() StatsData {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.stats
	s.ByEvent = maps.Clone(h.stats.ByEvent)
	return s
}

func (h *Handler) statsMessage() Message {
	data, _ := json.Marshal(h.GetStats())
	return Message{Type: MessageTypeStats, Timestamp: time.Now(), Data: data}
}

func (h *Handler) send(typ MessageType, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}
	h.server.Broadcast(Message{Type: typ, Timestamp: time.Now(), Data: data})
}
