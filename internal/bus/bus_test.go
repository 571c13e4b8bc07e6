package bus

import "testing"

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := New()

	var first, second int
	b.Subscribe("flags/demo_mode", func() { first++ })
	b.Subscribe("flags/demo_mode", func() { second++ })
	b.Subscribe("flags/safe_mode", func() { t.Error("wrong topic notified") })

	b.Publish("flags/demo_mode")
	b.Publish("flags/demo_mode")

	if first != 2 || second != 2 {
		t.Errorf("got %d/%d notifications, want 2/2", first, second)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()

	var calls int
	cancel := b.Subscribe("topic", func() { calls++ })

	b.Publish("topic")
	cancel()
	cancel() // idempotent
	b.Publish("topic")

	if calls != 1 {
		t.Errorf("got %d calls after cancel, want 1", calls)
	}
}

func TestPublishUnknownTopicIsNoop(t *testing.T) {
	b := New()
	b.Publish("nobody-listens") // must not panic
}

func TestSubscribeDuringCallback(t *testing.T) {
	b := New()

	var nested int
	b.Subscribe("t", func() {
		b.Subscribe("t", func() { nested++ })
	})

	b.Publish("t")
	b.Publish("t")

	if nested != 1 {
		t.Errorf("nested subscriber got %d calls, want 1", nested)
	}
}
