package engine

import (
	"context"
	"log"
	"time"

	"github.com/tinysense/sensord/pkg/config"
)

// Run is the node's single cooperative task: it polls elapsed-time conditions
// once per second and runs each due step to completion before checking the
// next. Aggregation cadence halves while emergency mode is active, to shed
// detailed-buffer pressure faster. Run blocks until ctx is cancelled, then
// takes a final snapshot and returns.
func (e *Engine) Run(ctx context.Context) {
	// The firmware reads the sensor once at boot before entering the loop;
	// do the same so the dashboard has data immediately.
	e.sample()

	poll := time.NewTicker(time.Second)
	defer poll.Stop()

	now := time.Now()
	lastSample := now
	lastAggregate := now
	lastMemCheck := now
	lastPersist := now

	for {
		select {
		case <-ctx.Done():
			log.Printf("Scheduler stopping, taking final snapshot")
			saveCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
			defer cancel()
			if err := e.Save(saveCtx); err != nil {
				log.Printf("Final snapshot failed: %v", err)
			}
			return

		case now = <-poll.C:
			if now.Sub(lastSample) >= e.cfg.SampleInterval {
				lastSample = now
				e.sample()
			}

			if now.Sub(lastAggregate) >= e.aggregationInterval() {
				lastAggregate = now
				ts, _ := e.clock.Now()
				e.RunAggregation(ts)
			}

			if now.Sub(lastMemCheck) >= config.MemoryCheckInterval {
				lastMemCheck = now
				e.CheckMemory()
			}

			if now.Sub(lastPersist) >= e.cfg.PersistInterval {
				lastPersist = now
				if err := e.Save(ctx); err != nil {
					log.Printf("Scheduled snapshot failed: %v", err)
				}
			}
		}
	}
}

// aggregationInterval is the bucket width, halved while emergency mode is
// active so the detailed buffer drains into buckets sooner.
func (e *Engine) aggregationInterval() time.Duration {
	if e.EmergencyMode() {
		return e.cfg.BucketWidth / 2
	}
	return e.cfg.BucketWidth
}

// sample reads the sensor once and submits the observation. Failed reads
// surface as NaN and are rejected by validation.
func (e *Engine) sample() {
	temperature, humidity := e.sensor.Read()
	if _, err := e.Submit(temperature, humidity); err == nil {
		log.Printf("Reading: %.1f°C, %.0f%% RH", temperature, humidity)
	}
}
