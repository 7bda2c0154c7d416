//
//
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/o-litvinchuk-dev/lab3/internal/logging"
	"github.com/o-litvinchuk-dev/lab3/internal/record"
)

// ErrStopped is returned by Register and Serve after Stop.
var ErrStopped = errors.New("hub stopped")

// Delivery results reported to the Observer.
const (
	DeliveryDelivered = "delivered"
	DeliveryDropped   = "dropped"
	DeliveryFailed    = "failed"
)

// Close reasons sent to peers.
const (
	ReasonSlowConsumer = "slow consumer"
	ReasonWriteFailed  = "write failed"
	ReasonShutdown     = "server shutting down"
	ReasonUnregistered = "unregistered"
	ReasonDisconnected = "disconnected"
)

// Conn is a bidirectional subscriber connection. Write may be called
// concurrently with Read.
type Conn interface {
	// Read blocks until the next inbound message, which is discarded, or
	// until the connection fails.
	Read(ctx context.Context) error
	Write(ctx context.Context, payload []byte) error
	Close(reason string) error
}

// Observer receives registry metrics.
type Observer interface {
	SetSubscribers(n int)
	ObserveDelivery(result string)
}

// Options configures a Hub.
type Options struct {
	QueueSize    int
	WriteTimeout time.Duration
	Logger       logging.Logger
	Observer     Observer
}

// Subscriber is one live connection in the registry.
type Subscriber struct {
	ID string

	conn  Conn
	queue chan []byte
	done  chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	reason    string
}

// Hub is the live subscriber registry.
type Hub struct {
	subs *xsync.MapOf[string, *Subscriber]

	queueSize    int
	writeTimeout time.Duration
	log          logging.Logger
	observer     Observer

	mu      sync.RWMutex // guards stopped against concurrent Register
	stopped bool
	wg      sync.WaitGroup
}

// NewHub creates an empty registry.
func NewHub(opts Options) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.Noop()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Hub{
		subs:         xsync.NewMapOf[string, *Subscriber](),
		queueSize:    opts.QueueSize,
		writeTimeout: opts.WriteTimeout,
		log:          opts.Logger.With(logging.String("component", "telemetry")),
		observer:     opts.Observer,
	}
}

// NewSubscriber wraps conn in a subscriber handle with a fresh identifier.
// The subscriber receives nothing until it is registered.
func (h *Hub) NewSubscriber(conn Conn) *Subscriber {
	return &Subscriber{
		ID:    uuid.NewString(),
		conn:  conn,
		queue: make(chan []byte, h.queueSize),
		done:  make(chan struct{}),
	}
}

// Register adds sub to the live set. Registering the same subscriber twice
// has no further effect.
func (h *Hub) Register(sub *Subscriber) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.stopped {
		return ErrStopped
	}

	if _, loaded := h.subs.LoadOrStore(sub.ID, sub); loaded {
		return nil
	}

	sub.startOnce.Do(func() {
		h.wg.Add(1)
		go h.writeLoop(sub)
	})

	n := h.subs.Size()
	h.observer.SetSubscribers(n)
	h.log.Debug(context.Background(), "subscriber registered",
		logging.String("subscriber_id", sub.ID),
		logging.Int("subscribers", n),
	)
	return nil
}

// Unregister removes sub and closes its connection. It is a no-op when sub
// is not registered.
func (h *Hub) Unregister(sub *Subscriber) {
	h.unregister(sub, ReasonUnregistered)
}

func (h *Hub) unregister(sub *Subscriber, reason string) {
	if _, loaded := h.subs.LoadAndDelete(sub.ID); !loaded {
		return
	}
	sub.close(reason)

	n := h.subs.Size()
	h.observer.SetSubscribers(n)
	h.log.Debug(context.Background(), "subscriber unregistered",
		logging.String("subscriber_id", sub.ID),
		logging.String("reason", reason),
		logging.Int("subscribers", n),
	)
}

// Broadcast queues rec for every subscriber registered at the time of the
// call. It never blocks on a subscriber; one whose queue is full is
// unregistered instead.
func (h *Hub) Broadcast(rec record.StoredRecord) {
	payload, err := json.Marshal(rec)
	if err != nil {
		h.log.Error(context.Background(), "failed to encode record", logging.Err(err))
		return
	}

	// Snapshot so delivery never runs while iterating the live map
	subs := make([]*Subscriber, 0, h.subs.Size())
	h.subs.Range(func(_ string, sub *Subscriber) bool {
		subs = append(subs, sub)
		return true
	})

	for _, sub := range subs {
		if sub.closed() || sub.enqueue(payload) {
			continue
		}
		h.observer.ObserveDelivery(DeliveryDropped)
		h.log.Warn(context.Background(), "dropping slow subscriber",
			logging.String("subscriber_id", sub.ID),
			logging.Int64("record_id", rec.ID),
		)
		h.unregister(sub, ReasonSlowConsumer)
	}
}

// Serve registers a subscriber for conn and reads from it until the peer
// goes away or ctx ends. Inbound messages are discarded. The subscriber is
// unregistered before Serve returns.
func (h *Hub) Serve(ctx context.Context, conn Conn) error {
	sub := h.NewSubscriber(conn)
	if err := h.Register(sub); err != nil {
		_ = conn.Close(ReasonShutdown)
		return err
	}
	defer h.unregister(sub, ReasonDisconnected)

	for {
		if err := conn.Read(ctx); err != nil {
			h.log.Debug(ctx, "subscriber read ended",
				logging.String("subscriber_id", sub.ID),
				logging.Err(err),
			)
			return nil
		}
	}
}

// Count returns the number of registered subscribers.
func (h *Hub) Count() int {
	return h.subs.Size()
}

// Stop unregisters every subscriber and waits for their writer loops to exit.
// Later registrations fail with ErrStopped.
func (h *Hub) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()

	h.subs.Range(func(_ string, sub *Subscriber) bool {
		h.unregister(sub, ReasonShutdown)
		return true
	})

	h.wg.Wait()
}

// writeLoop delivers queued payloads in order. It owns closing the
// connection so that Broadcast and Unregister never wait on the peer.
func (h *Hub) writeLoop(sub *Subscriber) {
	defer h.wg.Done()
	defer func() {
		// done is closed by whichever unregister won, which orders the reason read.
		<-sub.done
		_ = sub.conn.Close(sub.reason)
	}()

	for {
		select {
		case <-sub.done:
			return
		case payload := <-sub.queue:
			ctx, cancel := context.WithTimeout(context.Background(), h.writeTimeout)
			err := sub.conn.Write(ctx, payload)
			cancel()
			if err != nil {
				h.observer.ObserveDelivery(DeliveryFailed)
				h.log.Warn(ctx, "subscriber write failed",
					logging.String("subscriber_id", sub.ID),
					logging.Err(err),
				)
				h.unregister(sub, ReasonWriteFailed)
				return
			}
			h.observer.ObserveDelivery(DeliveryDelivered)
		}
	}
}

// enqueue reports whether payload was queued. It fails only when the queue
// is full.
func (s *Subscriber) enqueue(payload []byte) bool {
	select {
	case s.queue <- payload:
		return true
	default:
		return false
	}
}

func (s *Subscriber) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Subscriber) close(reason string) {
	s.closeOnce.Do(func() {
		s.reason = reason
		close(s.done)
	})
}

type nopObserver struct{}

func (nopObserver) SetSubscribers(int)     {}
func (nopObserver) ObserveDelivery(string) {}
