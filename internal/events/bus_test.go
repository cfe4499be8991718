package events

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventPriceTick, 10)
	defer unsub()

	tick := PriceTick{Ticker: "RELIANCE", Venue: "NSE", Price: 2500, Ts: time.Now()}
	bus.Publish(EventPriceTick, tick)

	select {
	case msg := <-ch:
		got, ok := msg.(PriceTick)
		if !ok || got.Price != 2500 {
			t.Fatalf("unexpected payload %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("no message delivered")
	}
}

func TestTopicsIsolated(t *testing.T) {
	bus := NewBus()
	ticks, unsubTicks := bus.Subscribe(EventPriceTick, 10)
	defer unsubTicks()
	alerts, unsubAlerts := bus.Subscribe(EventRiskAlert, 10)
	defer unsubAlerts()

	bus.Publish(EventRiskAlert, RiskAlert{Reason: "paused"})

	select {
	case msg := <-alerts:
		if msg.(RiskAlert).Reason != "paused" {
			t.Fatalf("unexpected alert %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("alert not delivered")
	}

	select {
	case msg := <-ticks:
		t.Fatalf("tick channel received foreign event %+v", msg)
	default:
	}
}

func TestSlowSubscriberDropped(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventPriceTick, 1)
	defer unsub()

	// Second publish must not block even though the buffer is full.
	done := make(chan struct{})
	go func() {
		bus.Publish(EventPriceTick, PriceTick{Price: 1})
		bus.Publish(EventPriceTick, PriceTick{Price: 2})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}

	if msg := <-ch; msg.(PriceTick).Price != 1 {
		t.Fatalf("expected first tick retained, got %+v", msg)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventSignal, 1)
	unsub()

	if _, open := <-ch; open {
		t.Fatalf("channel must close on unsubscribe")
	}

	// Publishing after unsubscribe must be a no-op, not a panic.
	bus.Publish(EventSignal, "late")
}
