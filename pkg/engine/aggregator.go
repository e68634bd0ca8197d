package engine

import (
	"log"
	"time"

	"github.com/tinysense/sensord/pkg/config"
	"github.com/tinysense/sensord/pkg/metrics"
	"github.com/tinysense/sensord/pkg/reading"
)

// RunAggregation drains detailed readings older than the retention window
// into fixed-width buckets and appends one mean reading per bucket to the
// aggregated series. It returns the number of buckets created.
//
// Only the contiguous oldest prefix with timestamps before the cutoff is
// considered. A clock-source jump can leave newer-looking entries in front of
// older ones; those stay in the detailed buffer until they age past the
// cutoff in prefix order. This is a known limitation, not corrected
// retroactively.
func (e *Engine) RunAggregation(now int64) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.detailed.Len() == 0 {
		return 0
	}

	cutoff := now - int64(e.cfg.RetentionWindow/time.Second)
	n := 0
	for n < e.detailed.Len() && e.detailed.At(n).Timestamp < cutoff {
		n++
	}
	if n == 0 {
		return 0
	}

	bucketWidth := int64(e.cfg.BucketWidth / time.Second)

	// Group the prefix by bucket key, preserving first-seen key order.
	type bucket struct {
		key  int64
		sumT float64
		sumH float64
		n    int
	}
	var buckets []bucket
	index := make(map[int64]int)

	for i := 0; i < n; i++ {
		r := e.detailed.At(i)
		key := r.Timestamp - r.Timestamp%bucketWidth
		j, ok := index[key]
		if !ok {
			j = len(buckets)
			index[key] = j
			buckets = append(buckets, bucket{key: key})
		}
		buckets[j].sumT += r.Temperature
		buckets[j].sumH += r.Humidity
		buckets[j].n++
	}

	created := 0
	for _, b := range buckets {
		// Tolerance-based identity: a candidate whose key lands within the
		// tolerance of an existing entry is a re-aggregation of the same
		// bucket and is dropped, not merged.
		if e.hasBucketNear(b.key) {
			continue
		}
		mean := reading.New(b.key, b.sumT/float64(b.n), b.sumH/float64(b.n))
		e.aggregated.Append(mean)
		created++
	}

	e.detailed.RemovePrefix(n)
	e.aggregated.EnforceCapacity()

	metrics.DetailedBufferSize.Set(float64(e.detailed.Len()))
	metrics.AggregatedSeriesSize.Set(float64(e.aggregated.Len()))
	if created > 0 {
		metrics.BucketsCreated.Add(float64(created))
		log.Printf("Aggregation: %d readings -> %d buckets (aggregated series at %d/%d)",
			n, created, e.aggregated.Len(), e.aggregated.Cap())
	}
	return created
}

// hasBucketNear reports whether the aggregated series already holds an entry
// within the bucket tolerance of key. Linear scan: the series is capped at a
// few hundred entries. Caller holds e.mu.
func (e *Engine) hasBucketNear(key int64) bool {
	tolerance := int64(config.BucketTolerance / time.Second)
	for i := e.aggregated.Len() - 1; i >= 0; i-- {
		d := e.aggregated.At(i).Timestamp - key
		if d < 0 {
			d = -d
		}
		if d <= tolerance {
			return true
		}
	}
	return false
}
