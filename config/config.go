// Package config holds the daemon's settings.
package config

import (
	"flag"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"switchd/domain/meter"
	"switchd/infra/rcu"
)

// Broker kinds.
const (
	BrokerSarama  = "sarama"
	BrokerKafkaGo = "kafka-go"
	BrokerNone    = "none"
)

type Config struct {
	RCU rcu.Config

	// Journal
	WALDir             string
	WALSegmentSize     int64
	WALSegmentDuration time.Duration
	WALSync            bool

	// Outbox
	OutboxDir string

	// Events
	Broker          string
	Brokers         []string
	Topic           string
	PublishInterval time.Duration
	MaxRetries      uint32

	// Listeners
	GRPCAddr     string
	MetricsAddr  string
	QueryThreads int

	// Snapshots
	SnapshotDir      string
	SnapshotInterval time.Duration

	Meters meter.Limits
}

func Default() Config {
	return Config{
		RCU: rcu.Config{
			SweepInterval:    rcu.DefaultSweepInterval,
			MaxSealedBatches: rcu.DefaultMaxSealedBatches,
		},
		WALDir:             "./wal_entry",
		WALSegmentSize:     2 * 1024 * 1024,
		WALSegmentDuration: time.Minute,
		OutboxDir:          "./wal_exit",
		Broker:             BrokerNone,
		Topic:              "switchd.meter-events",
		PublishInterval:    250 * time.Millisecond,
		MaxRetries:         10,
		GRPCAddr:           ":50051",
		MetricsAddr:        ":9090",
		QueryThreads:       4,
		SnapshotDir:        "./snapshots",
		SnapshotInterval:   time.Minute,
		Meters:             meter.Limits{MaxMeters: 1024, MaxBands: 8},
	}
}

// RegisterFlags binds c's fields to fs. Call it on a Default config so
// the flag defaults are meaningful.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.DurationVar(&c.RCU.SweepInterval, "rcu.sweep", c.RCU.SweepInterval, "grace-period sweeper interval")
	fs.Uint64Var(&c.RCU.MaxSealedBatches, "rcu.max-sealed", c.RCU.MaxSealedBatches, "sealed batch queue capacity (power of two)")
	fs.BoolVar(&c.RCU.Debug, "rcu.debug", c.RCU.Debug, "enable guard validation")

	fs.StringVar(&c.WALDir, "wal.dir", c.WALDir, "meter-mod journal directory")
	fs.Int64Var(&c.WALSegmentSize, "wal.segment-size", c.WALSegmentSize, "journal segment size in bytes")
	fs.DurationVar(&c.WALSegmentDuration, "wal.segment-duration", c.WALSegmentDuration, "journal segment rotation age")
	fs.BoolVar(&c.WALSync, "wal.sync", c.WALSync, "fsync the journal on every append")

	fs.StringVar(&c.OutboxDir, "outbox.dir", c.OutboxDir, "event outbox directory")

	fs.StringVar(&c.Broker, "broker", c.Broker, "event publisher: sarama, kafka-go or none")
	fs.Func("brokers", "comma separated Kafka brokers", func(s string) error {
		c.Brokers = splitList(s)
		return nil
	})
	fs.StringVar(&c.Topic, "topic", c.Topic, "Kafka topic for meter events")
	fs.DurationVar(&c.PublishInterval, "publish.interval", c.PublishInterval, "outbox scan interval")

	fs.StringVar(&c.GRPCAddr, "grpc.addr", c.GRPCAddr, "admin gRPC listen address")
	fs.StringVar(&c.MetricsAddr, "metrics.addr", c.MetricsAddr, "Prometheus listen address, empty disables")
	fs.IntVar(&c.QueryThreads, "query.threads", c.QueryThreads, "rcu threads reserved for stats queries")

	fs.StringVar(&c.SnapshotDir, "snapshot.dir", c.SnapshotDir, "snapshot directory")
	fs.DurationVar(&c.SnapshotInterval, "snapshot.interval", c.SnapshotInterval, "snapshot cadence, 0 disables")

	fs.Func("meters.max", "meter table capacity", func(s string) error {
		n, err := strconv.ParseUint(s, 10, 32)
		c.Meters.MaxMeters = uint32(n)
		return err
	})
	fs.Func("meters.max-bands", "bands per meter", func(s string) error {
		n, err := strconv.ParseUint(s, 10, 8)
		c.Meters.MaxBands = uint8(n)
		return err
	})
}

// Normalize fills unset fields from Default and rejects inconsistent
// settings.
func (c *Config) Normalize() error {
	def := Default()
	if c.WALDir == "" {
		c.WALDir = def.WALDir
	}
	if c.WALSegmentSize <= 0 {
		c.WALSegmentSize = def.WALSegmentSize
	}
	if c.OutboxDir == "" {
		c.OutboxDir = def.OutboxDir
	}
	if c.SnapshotDir == "" {
		c.SnapshotDir = def.SnapshotDir
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = def.PublishInterval
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.QueryThreads <= 0 {
		c.QueryThreads = def.QueryThreads
	}
	if c.Meters.MaxMeters == 0 {
		c.Meters.MaxMeters = def.Meters.MaxMeters
	}
	if c.Meters.MaxBands == 0 {
		c.Meters.MaxBands = def.Meters.MaxBands
	}

	c.Broker = strings.ToLower(strings.TrimSpace(c.Broker))
	switch c.Broker {
	case "":
		c.Broker = BrokerNone
	case BrokerNone:
	case BrokerSarama, BrokerKafkaGo:
		if len(c.Brokers) == 0 {
			return errors.Newf("config: broker %q needs at least one address", c.Broker)
		}
		if c.Topic == "" {
			return errors.New("config: empty topic")
		}
	default:
		return errors.Newf("config: unknown broker %q", c.Broker)
	}

	if n := c.RCU.MaxSealedBatches; n != 0 && n&(n-1) != 0 {
		return errors.Newf("config: rcu max sealed batches %d is not a power of two", n)
	}
	if c.GRPCAddr == "" {
		return errors.New("config: empty gRPC address")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
