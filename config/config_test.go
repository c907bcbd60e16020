package config

import (
	"flag"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Normalize(); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
	if c.Broker != BrokerNone {
		t.Fatalf("expected no broker by default, got %q", c.Broker)
	}
}

func TestNormalizeFillsZeroValues(t *testing.T) {
	c := Config{GRPCAddr: ":0"}
	if err := c.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	def := Default()
	if c.WALDir != def.WALDir || c.OutboxDir != def.OutboxDir || c.SnapshotDir != def.SnapshotDir {
		t.Fatalf("directories not defaulted: %+v", c)
	}
	if c.Meters != def.Meters {
		t.Fatalf("expected default limits, got %+v", c.Meters)
	}
	if c.Broker != BrokerNone {
		t.Fatalf("expected empty broker to become none, got %q", c.Broker)
	}
	if c.QueryThreads != def.QueryThreads {
		t.Fatalf("expected %d query threads, got %d", def.QueryThreads, c.QueryThreads)
	}
}

func TestNormalizeRejects(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*Config)
	}{
		{"unknown broker", func(c *Config) { c.Broker = "rabbit" }},
		{"sarama without brokers", func(c *Config) { c.Broker = BrokerSarama }},
		{"kafka-go without topic", func(c *Config) {
			c.Broker = BrokerKafkaGo
			c.Brokers = []string{"localhost:9092"}
			c.Topic = ""
		}},
		{"sealed queue not power of two", func(c *Config) { c.RCU.MaxSealedBatches = 100 }},
		{"no gRPC address", func(c *Config) { c.GRPCAddr = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mod(&c)
			if err := c.Normalize(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRegisterFlags(t *testing.T) {
	c := Default()
	fs := flag.NewFlagSet("switchd", flag.ContinueOnError)
	c.RegisterFlags(fs)

	err := fs.Parse([]string{
		"-broker", "Sarama",
		"-brokers", "a:9092, b:9092,",
		"-snapshot.interval", "5s",
		"-meters.max", "64",
		"-query.threads", "2",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := c.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if c.Broker != BrokerSarama {
		t.Fatalf("expected broker normalized to sarama, got %q", c.Broker)
	}
	if len(c.Brokers) != 2 || c.Brokers[1] != "b:9092" {
		t.Fatalf("unexpected brokers %v", c.Brokers)
	}
	if c.SnapshotInterval != 5*time.Second || c.Meters.MaxMeters != 64 || c.QueryThreads != 2 {
		t.Fatalf("flags not applied: %+v", c)
	}
}
