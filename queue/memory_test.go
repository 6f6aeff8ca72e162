package queue

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryQueuePublishConsume(t *testing.T) {
	q := NewMemoryQueue(8)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	received := map[string]Event{}
	done := make(chan struct{})

	go func() {
		_ = q.Consume(ctx, 2, func(_ context.Context, ev Event) error {
			mu.Lock()
			received[ev.ReportID] = ev
			if len(received) == 3 {
				close(done)
			}
			mu.Unlock()
			return nil
		})
	}()

	for _, id := range []string{"r1", "r2", "r3"} {
		err := q.Publish(ctx, Event{Type: EventReportCreated, ReportID: id, PlasticType: "PET", QuantityGrams: 100})
		if err != nil {
			t.Fatalf("publish %s: %v", id, err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for events")
	}

	mu.Lock()
	defer mu.Unlock()
	ev, ok := received["r2"]
	if !ok {
		t.Fatal("missing event r2")
	}
	if ev.Type != EventReportCreated || ev.PlasticType != "PET" || ev.QuantityGrams != 100 {
		t.Fatalf("event fields lost in transit: %+v", ev)
	}
}

func TestMemoryQueuePublishAfterClose(t *testing.T) {
	q := NewMemoryQueue(1)
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Publish(context.Background(), Event{Type: EventReportCreated}); err == nil {
		t.Fatal("expected error publishing to a closed queue")
	}
}

func TestMemoryQueueCloseDuringPublish(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 100; j++ {
				// Errors are expected once closed; a panic is the failure mode.
				_ = q.Publish(ctx, Event{Type: EventReportCreated, ReportID: "r"})
			}
		}()
	}

	close(start)
	_ = q.Close()
	wg.Wait()
}

func TestEventEncodeDecode(t *testing.T) {
	in := Event{
		Type:      EventAgentDecision,
		AccountID: "acct-1",
		Decision:  "approved",
		Message:   "your agent application was approved",
	}
	payload, err := encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}
