// Package activity keeps a best-effort local log of inbound messages, media
// references and outbound notifications.
package activity

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.etcd.io/bbolt"

	"github.com/stayflow/stayflow-backend/internal/logger"
	"github.com/stayflow/stayflow-backend/internal/models"
	"github.com/stayflow/stayflow-backend/internal/utils"
)

// Buckets
const (
	BucketActivity      = "activity"
	BucketMedia         = "media"
	BucketNotifications = "notifications"
)

// Media types
const (
	MediaAadhaar      = "AADHAAR"
	MediaPaymentProof = "PAYMENT_PROOF"
)

var droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "stayflow_activity_dropped_total",
	Help: "Activity events dropped because the recorder buffer was full.",
})

// Event is one recorded entry
type Event struct {
	ID        string
	Bucket    string
	Phone     string
	Name      string
	Type      string
	Content   string
	MediaID   string
	MediaPath string
	At        time.Time
}

// Recorder accepts events without blocking the caller; writes may fail silently.
type Recorder interface {
	Record(ev Event)
}

// Incoming builds the inbound-message event
func Incoming(msg models.InboundMessage) Event {
	ev := Event{Bucket: BucketActivity, Phone: msg.From, Type: "INCOMING_MESSAGE", Content: msg.Body}
	if msg.Image != nil {
		ev.MediaID = msg.Image.ID
		ev.MediaPath = msg.Image.Path
	}
	return ev
}

// Media builds a media-reference event
func Media(phone, mediaType string, ref *models.MediaRef) Event {
	ev := Event{Bucket: BucketMedia, Phone: phone, Type: mediaType}
	if ref != nil {
		ev.MediaID = ref.ID
		ev.MediaPath = ref.Path
		ev.Content = ref.URL
	}
	return ev
}

// Notification builds an outbound-notification event
func Notification(phone, name, messageType, content string) Event {
	return Event{Bucket: BucketNotifications, Phone: phone, Name: name, Type: messageType, Content: content}
}

// Nop discards everything
type Nop struct{}

func (Nop) Record(Event) {}

// BoltRecorder writes events to a bbolt file from a single goroutine
type BoltRecorder struct {
	db     *bbolt.DB
	events chan Event
	done   chan struct{}
	once   sync.Once

	// mu guards closed against sends racing Close
	mu     sync.RWMutex
	closed bool
}

// NewBoltRecorder opens path and starts the writer. buffer bounds the queue.
func NewBoltRecorder(path string, buffer int) (*BoltRecorder, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("activity: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range []string{BucketActivity, BucketMedia, BucketNotifications} {
			if _, err := tx.CreateBucketIfNotExists([]byte(b)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("activity: create buckets: %w", err)
	}

	if buffer <= 0 {
		buffer = 256
	}
	r := &BoltRecorder{
		db:     db,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go r.loop()
	return r, nil
}

// Record enqueues ev; it drops the event when the queue is full
func (r *BoltRecorder) Record(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.Phone = utils.NormalizePhone(ev.Phone)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		droppedTotal.Inc()
		return
	}
	select {
	case r.events <- ev:
	default:
		droppedTotal.Inc()
		logger.Warn("Activity buffer full, dropping event", "bucket", ev.Bucket, "type", ev.Type)
	}
}

func (r *BoltRecorder) loop() {
	defer close(r.done)
	for ev := range r.events {
		if err := r.write(ev); err != nil {
			logger.Warn("Activity write failed", "bucket", ev.Bucket, "error", err)
		}
	}
}

// key orders entries by time
func key(ev Event) []byte {
	return []byte(fmt.Sprintf("%020d-%s", ev.At.UnixNano(), ev.ID))
}

func (r *BoltRecorder) write(ev Event) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ev); err != nil {
		return err
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(ev.Bucket))
		if b == nil {
			return fmt.Errorf("unknown bucket %q", ev.Bucket)
		}
		return b.Put(key(ev), buf.Bytes())
	})
}

// Recent returns up to limit newest events of bucket, optionally for one phone
func (r *BoltRecorder) Recent(bucket, phone string, limit int) ([]Event, error) {
	var out []Event
	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("unknown bucket %q", bucket)
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var ev Event
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&ev); err != nil {
				continue
			}
			if phone != "" && !utils.PhonesEquivalent(ev.Phone, phone) {
				continue
			}
			out = append(out, ev)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// Close drains pending events and closes the file
func (r *BoltRecorder) Close() error {
	var err error
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.events)
		r.mu.Unlock()
		<-r.done
		err = r.db.Close()
	})
	return err
}
