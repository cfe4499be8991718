package market

import (
	"context"
	"log"
	"math/rand"
	"time"

	"papertrade-core/internal/events"
)

// MockFeed generates synthetic marks for local development.
type MockFeed struct {
	Bus         *events.Bus
	Instruments []Instrument
	StartPrice  float64
	Step        float64
	Interval    time.Duration
}

func (m *MockFeed) Start(ctx context.Context) {
	if m.Bus == nil {
		log.Println("mock feed: bus not set")
		return
	}
	if len(m.Instruments) == 0 {
		m.Instruments = []Instrument{{Ticker: "SEED", Venue: VenueNSE}}
	}
	if m.StartPrice == 0 {
		m.StartPrice = 100.0
	}
	if m.Step == 0 {
		m.Step = 0.5
	}
	if m.Interval == 0 {
		m.Interval = time.Second
	}

	prices := make(map[string]float64, len(m.Instruments))
	for _, inst := range m.Instruments {
		prices[inst.Key()] = m.StartPrice
	}

	go func() {
		t := time.NewTicker(m.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				for _, inst := range m.Instruments {
					// simple random walk
					p := prices[inst.Key()] + (rand.Float64()*2-1)*m.Step
					if p <= 0 {
						p = m.Step
					}
					prices[inst.Key()] = p
					m.Bus.Publish(events.EventPriceTick, events.PriceTick{
						Ticker: inst.Ticker,
						Venue:  string(inst.Venue),
						Price:  p,
						Ts:     time.Now(),
					})
				}
			}
		}
	}()
}
