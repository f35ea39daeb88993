package dedupe

// Option applies a configuration option to the InMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithMaxSize sets the capacity. A value <= 0 means unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}

// WithPruneRatio sets the share of capacity discarded when the set overflows.
// Values outside (0,1) are ignored.
func WithPruneRatio(ratio float64) Option {
	return func(d *inMemoryDeduper) {
		if ratio > 0 && ratio < 1 {
			d.pruneRatio = ratio
		}
	}
}
