package event

import (
	"sync"
	"testing"
)

func TestPublishDeliversToTopicSubscribers(t *testing.T) {
	b := NewBus()

	var got []any
	b.Subscribe(TopicKeyboard, func(p any) { got = append(got, p) })
	b.Subscribe(TopicJoystick, func(p any) { t.Error("wrong topic delivered") })

	b.Publish(TopicKeyboard, "hello")
	if len(got) != 1 || got[0] != "hello" {
		t.Errorf("delivered %v, want [hello]", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := NewBus()
	calls := 0
	sub := b.Subscribe(TopicMIDI, func(any) { calls++ })

	b.Publish(TopicMIDI, 1)
	if err := b.Unsubscribe(sub); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	b.Publish(TopicMIDI, 2)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if err := b.Unsubscribe(sub); err != ErrNotSubscribed {
		t.Errorf("double unsubscribe = %v, want ErrNotSubscribed", err)
	}
}

func TestPanicDoesNotStopSiblings(t *testing.T) {
	b := NewBus()
	delivered := 0
	b.Subscribe(TopicOSC, func(any) { panic("boom") })
	b.Subscribe(TopicOSC, func(any) { delivered++ })
	b.Subscribe(TopicOSC, func(any) { delivered++ })

	b.Publish(TopicOSC, nil)
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}
	if b.Stats().Panics != 1 {
		t.Errorf("panics = %d, want 1", b.Stats().Panics)
	}
}

func TestConcurrentPublish(t *testing.T) {
	b := NewBus()
	var mu sync.Mutex
	count := 0
	b.Subscribe(TopicJoystick, func(any) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Publish(TopicJoystick, j)
			}
		}()
	}
	wg.Wait()

	if count != 800 {
		t.Errorf("count = %d, want 800", count)
	}
}

func TestClear(t *testing.T) {
	b := NewBus()
	b.Subscribe(TopicKeyboard, func(any) { t.Error("cleared handler fired") })
	b.Clear()
	if b.SubscriberCount(TopicKeyboard) != 0 {
		t.Error("Clear should drop all subscriptions")
	}
	b.Publish(TopicKeyboard, nil)
}
