package lockfree

import (
	"sync"
	"sync/atomic"
	"time"
)

// defaultSpinLimit is the static spin count used by the calibration
// probe itself, and the fallback result when calibration cannot
// produce a meaningful estimate (nil probe, timing resolution too
// coarse). Correctness never
// depends on this value; it only affects how long a contending
// goroutine busy-waits before cooperatively yielding.
const defaultSpinLimit = 64

const (
	minCalibratedSpinLimit = 16
	maxCalibratedSpinLimit = 4096
	calibrationSamples     = 10
	calibrationBestOf      = 4
)

// calibrationLatency records the raw probe durations measured by every
// calibrateSpinLimit call across the process, via the P-Square
// streaming quantile estimator in [LatencyMetrics]. CalibrationLatency
// exposes a snapshot for diagnostics.
var calibrationLatency LatencyMetrics

// CalibrationLatency returns a snapshot of the probe-duration
// distribution observed during spin-limit calibration so far, across
// every container class. Zero-value if no calibration has run yet.
func CalibrationLatency() LatencySnapshot {
	return calibrationLatency.Snapshot()
}

// spinCalibration caches the adaptively-measured spin-loop iteration
// count for one container class (stack or ring). The spec models this
// as a class-level singleton measured on first use; [sync.Once] gives
// the same "measure once, reuse forever" behavior idiomatically.
type spinCalibration struct {
	once  sync.Once
	value atomic.Uint32
}

// get returns the calibrated spin limit, running the one-shot
// calibration sample against probe on first call. probe should
// perform one representative push/pop-shaped unit of work.
func (c *spinCalibration) get(probe func()) uint32 {
	c.once.Do(func() {
		c.value.Store(calibrateSpinLimit(probe))
	})
	return c.value.Load()
}

// calibrateSpinLimit measures the median duration of calibrationBestOf
// fastest runs (out of calibrationSamples) of probe, then converts
// that duration into a spin-loop iteration count by timing a batch of
// pauseHint calls. A static default is substituted if timing
// resolution is too coarse to produce a meaningful estimate; this is
// a soft heuristic; correctness never depends on it.
func calibrateSpinLimit(probe func()) uint32 {
	if probe == nil {
		return defaultSpinLimit
	}

	samples := make([]time.Duration, calibrationSamples)
	for i := range samples {
		start := time.Now()
		probe()
		samples[i] = time.Since(start)
		calibrationLatency.Record(samples[i])
	}
	insertionSortDurations(samples)

	best := samples[:calibrationBestOf]
	target := best[len(best)/2]
	if target <= 0 {
		return defaultSpinLimit
	}

	const pauseBatch = 4096
	start := time.Now()
	for i := 0; i < pauseBatch; i++ {
		pauseHint()
	}
	pauseBatchDuration := time.Since(start)
	if pauseBatchDuration <= 0 {
		return defaultSpinLimit
	}
	perPause := pauseBatchDuration / pauseBatch

	limit := uint64(target / perPause)
	if limit < minCalibratedSpinLimit {
		limit = minCalibratedSpinLimit
	}
	if limit > maxCalibratedSpinLimit {
		limit = maxCalibratedSpinLimit
	}
	LogSpinCalibrated("calibration", uint32(limit), target)
	return uint32(limit)
}

// insertionSortDurations sorts small duration slices in place.
// calibrationSamples is small enough that insertion sort beats the
// overhead of sort.Slice's interface dispatch.
func insertionSortDurations(d []time.Duration) {
	for i := 1; i < len(d); i++ {
		key := d[i]
		j := i - 1
		for j >= 0 && d[j] > key {
			d[j+1] = d[j]
			j--
		}
		d[j+1] = key
	}
}
