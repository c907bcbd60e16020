package kafka

import (
	"context"
	"testing"
	"time"
)

func TestPublishFailsWithoutBroker(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "meters")
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := p.Publish(ctx, []byte("1"), []byte("x")); err == nil {
		t.Fatal("expected publish to an unreachable broker to fail")
	}
}
