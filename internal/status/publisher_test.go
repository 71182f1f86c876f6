package status

import (
	"context"
	"testing"
)

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	if err := p.Publish(context.Background(), map[string]string{"status": "running"}); err != nil {
		t.Errorf("Publish() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewRedisPublisherInvalidURL(t *testing.T) {
	if _, err := NewRedisPublisher(context.Background(), "http://localhost:6379", "autolearn:status"); err == nil {
		t.Fatal("expected error for non-redis URL scheme")
	}
}

func TestPublishRejectsUnserialisableSnapshot(t *testing.T) {
	p := NewRedisPublisherWithClient(nil, "autolearn:status")
	if err := p.Publish(context.Background(), make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}
