package lockfree

// containerOptions holds configuration shared by every container
// constructor in this package.
type containerOptions struct {
	metricsEnabled    bool
	partlyEmptyFactor float64
	almostFullFactor  float64
	spinLimit         uint32 // 0 means "use adaptive calibration"
}

const (
	defaultPartlyEmptyFactor = 0.8
	defaultAlmostFullFactor  = 0.9
)

// Option configures a container at construction time.
type Option interface {
	applyContainer(*containerOptions) error
}

// optionImpl implements Option via a plain function, mirroring the
// functional-options shape used throughout this package.
type optionImpl struct {
	apply func(*containerOptions) error
}

func (o *optionImpl) applyContainer(opts *containerOptions) error {
	return o.apply(opts)
}

// WithMetrics enables runtime metrics collection ([Stack.Metrics],
// [RingQueue.Metrics], [BlockQueue.Metrics]). Disabled by default to
// keep the fast path allocation-free.
func WithMetrics(enabled bool) Option {
	return &optionImpl{func(opts *containerOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// WithPartlyEmptyFactor overrides the fraction of capacity at or below
// which a notification-wrapped container fires OnPartlyEmpty. The
// resulting threshold is clipped to at most capacity-1. Default 0.8.
func WithPartlyEmptyFactor(factor float64) Option {
	return &optionImpl{func(opts *containerOptions) error {
		opts.partlyEmptyFactor = factor
		return nil
	}}
}

// WithAlmostFullFactor overrides the fraction of capacity at or above
// which a notification-wrapped container fires OnAlmostFull. Default 0.9.
func WithAlmostFullFactor(factor float64) Option {
	return &optionImpl{func(opts *containerOptions) error {
		opts.almostFullFactor = factor
		return nil
	}}
}

// WithSpinLimit overrides the adaptively-calibrated micro-lock spin
// count with a fixed value. Zero (the default) leaves calibration in
// control; correctness never depends on this value, only contention
// behavior does.
func WithSpinLimit(limit uint32) Option {
	return &optionImpl{func(opts *containerOptions) error {
		opts.spinLimit = limit
		return nil
	}}
}

// resolveOptions applies Option values over the documented defaults.
func resolveOptions(opts []Option) (*containerOptions, error) {
	cfg := &containerOptions{
		partlyEmptyFactor: defaultPartlyEmptyFactor,
		almostFullFactor:  defaultAlmostFullFactor,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyContainer(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
