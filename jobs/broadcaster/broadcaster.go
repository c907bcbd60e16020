// Package broadcaster drains the outbound event log to the message
// broker.
package broadcaster

import (
	"context"
	"io"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	exitwal "switchd/infra/wal/exit"
)

// Publisher delivers one event to the broker. Publish returns only after
// the broker acknowledged the message.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

type Config struct {
	Interval   time.Duration
	MaxRetries uint32
	// Key derives the broker message key from an event payload. Events
	// sharing a key keep their relative order on the broker. A nil Key,
	// or one returning nil, keys by outbox sequence.
	Key        func(payload []byte) []byte
	Logger     *log.Logger
	Registerer prometheus.Registerer
}

const (
	DefaultInterval   = 250 * time.Millisecond
	DefaultMaxRetries = 10
)

type Broadcaster struct {
	exitWAL *exitwal.ExitWAL
	pub     Publisher
	cfg     Config
	log     *log.Logger

	published prometheus.Counter
	failed    prometheus.Counter

	mu   sync.Mutex
	done chan struct{}
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(exitWAL *exitwal.ExitWAL, pub Publisher, cfg Config) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	b := &Broadcaster{
		exitWAL: exitWAL,
		pub:     pub,
		cfg:     cfg,
		log:     cfg.Logger,
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "switchd_events_published_total",
			Help: "Meter events acknowledged by the broker.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "switchd_events_failed_total",
			Help: "Failed meter event publish attempts.",
		}),
	}
	if cfg.Registerer != nil {
		cfg.Registerer.MustRegister(b.published, b.failed)
	}
	return b
}

func (b *Broadcaster) key(rec *exitwal.ExitRecord) []byte {
	if b.cfg.Key != nil {
		if k := b.cfg.Key(rec.Payload); k != nil {
			return k
		}
	}
	return []byte(strconv.FormatUint(rec.Seq, 10))
}

// ------------------------------------------------
// START LOOP
// ------------------------------------------------

// Start runs the publish loop until ctx is done. Wait blocks until the
// loop has exited.
func (b *Broadcaster) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done != nil {
		return
	}
	b.done = make(chan struct{})
	b.log.Printf("[broadcaster] started interval=%s", b.cfg.Interval)

	go func() {
		defer close(b.done)
		ticker := time.NewTicker(b.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				b.log.Println("[broadcaster] stopped")
				return

			case <-ticker.C:
				if _, err := b.RunOnce(ctx); err != nil && ctx.Err() == nil {
					b.log.Printf("[broadcaster] pass failed: %v", err)
				}
			}
		}
	}()
}

func (b *Broadcaster) Wait() {
	b.mu.Lock()
	done := b.done
	b.mu.Unlock()
	if done != nil {
		<-done
	}
}

// ------------------------------------------------
// PUBLISH PASS
// ------------------------------------------------

// RunOnce makes one attempt at every pending event in sequence order and
// then drops the acknowledged prefix of the log. It returns the number
// of events acknowledged in this pass.
func (b *Broadcaster) RunOnce(ctx context.Context) (int, error) {
	acked := 0
	var lastAcked uint64

	err := b.exitWAL.ScanPending(b.cfg.MaxRetries, func(rec *exitwal.ExitRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		// 1. Mark SENT
		if err := b.exitWAL.MarkSent(rec.Seq); err != nil {
			return err
		}

		// 2. Publish
		key := b.key(rec)
		if err := b.pub.Publish(ctx, key, rec.Payload); err != nil {
			b.failed.Inc()
			if rec.Retries+1 >= b.cfg.MaxRetries {
				b.log.Printf("[broadcaster] giving up on event %d after %d attempts: %v", rec.Seq, rec.Retries+1, err)
			}
			// retry on a later pass
			return b.exitWAL.MarkFailed(rec.Seq)
		}

		// 3. Mark ACKED
		if err := b.exitWAL.MarkAcked(rec.Seq); err != nil {
			return err
		}
		b.published.Inc()
		acked++
		lastAcked = rec.Seq
		return nil
	})
	if err != nil {
		return acked, err
	}

	if lastAcked > 0 {
		if _, err := b.exitWAL.TruncateAckedUpTo(lastAcked); err != nil {
			return acked, err
		}
	}
	return acked, nil
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.pub.Close()
}

// Discard is a Publisher that acknowledges everything. The daemon uses it
// when no broker is configured.
type Discard struct{ W io.Writer }

func (d Discard) Publish(_ context.Context, key, value []byte) error {
	if d.W != nil {
		_, err := d.W.Write(append(append(key, ' '), value...))
		return err
	}
	return nil
}

func (Discard) Close() error { return nil }
