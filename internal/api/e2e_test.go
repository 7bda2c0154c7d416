package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/o-litvinchuk-dev/lab3/internal/ingest"
	"github.com/o-litvinchuk-dev/lab3/internal/logging"
	"github.com/o-litvinchuk-dev/lab3/internal/query"
	"github.com/o-litvinchuk-dev/lab3/internal/record"
	"github.com/o-litvinchuk-dev/lab3/internal/storage"
	"github.com/o-litvinchuk-dev/lab3/internal/telemetry"
)

type stack struct {
	srv   *httptest.Server
	hub   *telemetry.Hub
	store *storage.Memory
}

func newStack(t *testing.T) *stack {
	t.Helper()
	store := storage.NewMemory()
	hub := telemetry.NewHub(telemetry.Options{QueueSize: 16, WriteTimeout: time.Second})
	ing := ingest.NewService(store, hub, logging.Noop())
	q := query.NewService(store, logging.Noop())

	server := NewServer(ing, q, hub, store, Options{})
	srv := httptest.NewServer(server.Handler())

	t.Cleanup(func() {
		hub.Stop()
		srv.Close()
		store.Close()
	})
	return &stack{srv: srv, hub: hub, store: store}
}

func (s *stack) post(t *testing.T, body string) (*http.Response, Response) {
	t.Helper()
	resp, err := http.Post(s.srv.URL+PathProcessedAgentData, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	var env Response
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("Failed to decode envelope: %v", err)
	}
	return resp, env
}

func (s *stack) list(t *testing.T) []record.StoredRecord {
	t.Helper()
	resp, err := http.Get(s.srv.URL + PathProcessedAgentData)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Data []record.StoredRecord `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode list: %v", err)
	}
	if body.Data == nil {
		t.Fatal("Expected data to be a list, got null")
	}
	return body.Data
}

func (s *stack) subscribe(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + PathSubscribe
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	return c
}

func waitForCount(t *testing.T, hub *telemetry.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %d subscribers, have %d", want, hub.Count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestE2EPotholeReachesSubscriber(t *testing.T) {
	s := newStack(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := s.subscribe(t, ctx)
	defer c.CloseNow()
	waitForCount(t, s.hub, 1)

	resp, env := s.post(t, potholeBody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %+v", resp.StatusCode, env)
	}

	_, payload, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	var got record.StoredRecord
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("Failed to decode broadcast %q: %v", payload, err)
	}

	want := time.Date(2023, 10, 5, 12, 0, 0, 0, time.UTC)
	if got.RoadState != "pothole" || got.X != 1.0 || got.Y != 2.0 || got.Z != 9.8 ||
		got.Latitude != 50.45 || got.Longitude != 30.52 || !got.Timestamp.Equal(want) {
		t.Errorf("Unexpected broadcast record: %+v", got)
	}

	rows := s.list(t)
	if len(rows) != 1 || rows[0].ID != got.ID {
		t.Errorf("Expected stored row with id %d, got %+v", got.ID, rows)
	}
}

func TestE2EInvalidItemRejectsWholeBatch(t *testing.T) {
	s := newStack(t)

	batch := `[
		{"road_state": "normal", "agent_data": {"accelerometer": {"x": 0, "y": 0, "z": 9.8}, "gps": {"latitude": 50, "longitude": 30}, "timestamp": "2023-10-05T12:00:00"}},
		{"road_state": "normal", "agent_data": {"accelerometer": {"x": 0, "y": 0, "z": 9.8}, "gps": {"latitude": 50, "longitude": 30}, "timestamp": "not-a-date"}},
		{"road_state": "bump", "agent_data": {"accelerometer": {"x": 0, "y": 0, "z": 12}, "gps": {"latitude": 50, "longitude": 30}, "timestamp": "2023-10-05T12:00:02"}}
	]`
	resp, env := s.post(t, batch)

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d", resp.StatusCode)
	}
	details, _ := env.Details.([]interface{})
	if len(details) != 1 {
		t.Fatalf("Expected one detail entry, got %v", env.Details)
	}
	entry := details[0].(map[string]interface{})
	if entry["index"] != float64(1) || entry["field"] != "agent_data.timestamp" {
		t.Errorf("Unexpected detail entry: %v", entry)
	}

	if rows := s.list(t); len(rows) != 0 {
		t.Errorf("Expected nothing stored, got %d rows", len(rows))
	}
}

func TestE2EEmptyStore(t *testing.T) {
	s := newStack(t)

	if rows := s.list(t); len(rows) != 0 {
		t.Errorf("Expected empty list, got %+v", rows)
	}
}

func TestE2EBatchOrder(t *testing.T) {
	s := newStack(t)

	var items []string
	for _, state := range []string{"normal", "bump", "pothole"} {
		items = append(items, `{"road_state": "`+state+`", "agent_data": {"accelerometer": {"x": 0, "y": 0, "z": 1}, "gps": {"latitude": 0, "longitude": 0}, "timestamp": "2023-10-05T12:00:00Z"}}`)
	}
	resp, _ := s.post(t, "["+strings.Join(items, ",")+"]")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	rows := s.list(t)
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	for i, want := range []string{"normal", "bump", "pothole"} {
		if rows[i].RoadState != want {
			t.Errorf("Row %d: expected %s, got %s", i, want, rows[i].RoadState)
		}
		if i > 0 && rows[i].ID <= rows[i-1].ID {
			t.Errorf("Ids not ascending: %d after %d", rows[i].ID, rows[i-1].ID)
		}
	}
}

func TestE2ESubscriberDisconnect(t *testing.T) {
	s := newStack(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := s.subscribe(t, ctx)
	waitForCount(t, s.hub, 1)

	_ = c.Close(websocket.StatusNormalClosure, "bye")
	waitForCount(t, s.hub, 0)

	// Broadcasting with no subscribers still succeeds.
	resp, _ := s.post(t, potholeBody)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with no subscribers, got %d", resp.StatusCode)
	}
}

func TestE2EHealth(t *testing.T) {
	s := newStack(t)

	resp, err := http.Get(s.srv.URL + PathHealth)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}
