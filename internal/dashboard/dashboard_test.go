package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/marksync/marksync/internal/cache"
	"github.com/marksync/marksync/internal/tree"
)

func testConfig(source TreeSource) *Config {
	return &Config{
		Host:   "127.0.0.1",
		Port:   0, // Use random available port
		Tree:   source,
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	}
}

func startServer(t *testing.T, source TreeSource) *Server {
	t.Helper()
	server := NewServer(testConfig(source))
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

func dial(t *testing.T, ctx context.Context, server *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

// waitForClients polls until the server has registered n clients.
func waitForClients(t *testing.T, server *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for server.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients, got %d", n, server.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(testConfig(nil))

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if addr := server.GetAddr(); addr == "" || addr == "127.0.0.1:0" {
		t.Fatalf("Unexpected server address %q", addr)
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestWebSocketWelcome(t *testing.T) {
	server := startServer(t, nil)
	handler := NewHandler(server, log.New(io.Discard, "", 0))
	handler.SetNodes(7)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeStats {
		t.Fatalf("Expected welcome message type %s, got %s", MessageTypeStats, msg.Type)
	}
	var stats StatsData
	if err := json.Unmarshal(msg.Data, &stats); err != nil {
		t.Fatalf("Failed to unmarshal stats: %v", err)
	}
	if stats.Nodes != 7 {
		t.Errorf("Expected 7 nodes in welcome, got %d", stats.Nodes)
	}
	waitForClients(t, server, 1)
}

func TestMultipleClients(t *testing.T) {
	server := startServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const numClients = 3
	for i := 0; i < numClients; i++ {
		conn := dial(t, ctx, server)
		readMessage(t, ctx, conn)
	}
	waitForClients(t, server, numClients)
}

func TestCacheActivityBroadcast(t *testing.T) {
	server := startServer(t, nil)
	handler := NewHandler(server, log.New(io.Discard, "", 0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	readMessage(t, ctx, conn) // welcome
	waitForClients(t, server, 1)

	c := cache.New(
		cache.WithLogger(log.New(io.Discard, "", 0)),
		cache.WithSink(handler),
		cache.WithObserver(handler),
	)
	id, err := c.CreateFolder(ctx, cache.FolderInput{ParentID: tree.RootID, Title: "A"})
	if err != nil {
		t.Fatalf("CreateFolder() failed: %v", err)
	}

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeEvent {
		t.Fatalf("Expected %s, got %s", MessageTypeEvent, msg.Type)
	}
	var ev EventData
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Event != cache.EventCreateFolder {
		t.Errorf("Expected event %s, got %s", cache.EventCreateFolder, ev.Event)
	}
	var in cache.FolderInput
	if err := json.Unmarshal(ev.Payload, &in); err != nil || in.Title != "A" {
		t.Errorf("Payload = %s (%v)", ev.Payload, err)
	}

	msg = readMessage(t, ctx, conn)
	if msg.Type != MessageTypeChange {
		t.Fatalf("Expected %s, got %s", MessageTypeChange, msg.Type)
	}
	var ch ChangeData
	if err := json.Unmarshal(msg.Data, &ch); err != nil {
		t.Fatal(err)
	}
	if ch.ID != id || ch.Nodes != 2 {
		t.Errorf("Change = %+v, want id %s with 2 nodes", ch, id)
	}

	msg = readMessage(t, ctx, conn)
	if msg.Type != MessageTypeStats {
		t.Errorf("Expected trailing %s, got %s", MessageTypeStats, msg.Type)
	}

	stats := handler.GetStats()
	if stats.Events != 1 || stats.Changes != 1 || stats.ByEvent[cache.EventCreateFolder] != 1 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestHandlerOnImport(t *testing.T) {
	server := NewServer(testConfig(nil))
	handler := NewHandler(server, log.New(io.Discard, "", 0))

	handler.OnImport("a.json", 0, 4, nil)
	handler.OnImport("b.json", 0, 0, errors.New("boom"))

	if got := handler.GetStats().FailedImports; got != 1 {
		t.Errorf("FailedImports = %d, want 1", got)
	}

	// Messages queued on a server that never started are drained here.
	for i := 0; i < 2; i++ {
		select {
		case msg := <-server.broadcast:
			if msg.Type != MessageTypeImport {
				t.Errorf("Expected %s, got %s", MessageTypeImport, msg.Type)
			}
		default:
			t.Fatalf("Expected 2 queued messages, got %d", i)
		}
	}
}

func TestTreeEndpoint(t *testing.T) {
	c := cache.New(cache.WithLogger(log.New(io.Discard, "", 0)))
	ctx := context.Background()
	a, _ := c.CreateFolder(ctx, cache.FolderInput{ParentID: tree.RootID, Title: "A"})
	if _, err := c.CreateBookmark(ctx, cache.BookmarkInput{ParentID: a, URL: "https://x"}); err != nil {
		t.Fatal(err)
	}

	server := NewServer(testConfig(c))
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/tree")
	if err != nil {
		t.Fatalf("GET /tree failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var w tree.Wire
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		t.Fatalf("Failed to decode tree: %v", err)
	}
	if len(w.Children) != 1 || w.Children[0].Title != "A" || len(w.Children[0].Children) != 1 {
		t.Errorf("Unexpected tree %+v", w)
	}
}

func TestTreeEndpoint_NoSource(t *testing.T) {
	ts := httptest.NewServer(NewServer(testConfig(nil)).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/tree")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.StatusCode)
	}
}

func TestTreeEndpoint_SourceError(t *testing.T) {
	source := TreeSourceFunc(func(context.Context) (*tree.Tree, error) {
		return nil, errors.New("cache closed")
	})
	ts := httptest.NewServer(NewServer(testConfig(source)).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/tree")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := httptest.NewServer(NewServer(testConfig(nil)).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Clients != 0 {
		t.Errorf("Unexpected health %+v", body)
	}

	resp, err = http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown path, got %d", resp.StatusCode)
	}
}
