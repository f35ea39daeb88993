// Package service wires connectors, the Tier 1 classifier, the Tier 2 batch
// scorer and the event log into one running relay.
package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/lobstream/internal/adapters/mq/queue"
	"github.com/okian/lobstream/internal/adapters/mq/worker"
	"github.com/okian/lobstream/internal/adapters/repository"
	"github.com/okian/lobstream/internal/connectors"
	"github.com/okian/lobstream/internal/domain/classify"
	"github.com/okian/lobstream/internal/domain/scoring"
	"github.com/okian/lobstream/pkg/logger"
	"github.com/okian/lobstream/pkg/metrics"
)

const defaultScorerQueueSize = 1000

// Service owns the relay's running components.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	ownsStore  bool
	classifier *classify.Classifier
	scorer     scoring.Scorer
	persister  Persister
	batch      *worker.BatchScorer
	router     *Router
	connectors []connectors.Connector
	handles    []*connectors.Handle

	// Tier 2 configuration
	batchSize     int
	flushInterval time.Duration
	policy        scoring.Policy
	queueSize     int

	// State
	started   bool
	startedAt time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the event log. Without it the service uses a RingStore it
// closes on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithClassification enables or disables Tier 1 tagging. Untagged posts
// never reach Tier 2.
func WithClassification(enabled bool) Option {
	return func(s *Service) {
		if enabled {
			s.classifier = classify.New(classify.DefaultTopics()...)
		} else {
			s.classifier = nil
		}
	}
}

// WithClassifier sets a custom Tier 1 classifier.
func WithClassifier(c *classify.Classifier) Option {
	return func(s *Service) {
		s.classifier = c
	}
}

// WithScorer enables Tier 2 with the given scorer. Without one, tagged posts
// are still batched and written as Tier 1.
func WithScorer(scorer scoring.Scorer) Option {
	return func(s *Service) {
		s.scorer = scorer
	}
}

// WithBatchSize sets the Tier 2 batch size.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithFlushInterval sets how often partial Tier 2 batches are flushed.
func WithFlushInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.flushInterval = d
		}
	}
}

// WithPolicy sets the Tier 2 relevance gate.
func WithPolicy(p scoring.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithQueueSize sets how many posts may wait for Tier 2.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithPersister enables best-effort persistence of agent-network posts.
func WithPersister(p Persister) Option {
	return func(s *Service) {
		s.persister = p
	}
}

// WithConnectors sets the connectors started by Start.
func WithConnectors(cs ...connectors.Connector) Option {
	return func(s *Service) {
		s.connectors = append(s.connectors, cs...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a service with the given options.
func New(opts ...Option) *Service {
	s := &Service{
		classifier: classify.New(classify.DefaultTopics()...),
		policy:     scoring.DefaultPolicy(),
		queueSize:  defaultScorerQueueSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewRingStore()
		s.ownsStore = true
	}
	return s
}

// Start launches the scorer and every connector. Calling it twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	// Without an LLM the batcher still runs and writes tagged posts as Tier 1.
	s.batch = worker.NewBatchScorer(
		queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize)),
		s.scorer,
		s.store,
		worker.WithBatchSize(s.batchSize),
		worker.WithFlushInterval(s.flushInterval),
		worker.WithPolicy(s.policy),
	)
	s.batch.Start(ctx)
	s.router = NewRouter(s.store, s.classifier, s.batch, s.persister)

	s.handles = make([]*connectors.Handle, 0, len(s.connectors))
	for _, c := range s.connectors {
		s.handles = append(s.handles, c.Start(ctx, s.router))
	}

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "relay service started",
		logger.Int("connectors", len(s.handles)),
		logger.Bool("classification", s.classifier != nil),
		logger.Bool("tier2", s.scorer != nil),
		logger.Bool("persistence", s.persister != nil))
	return nil
}

// Stop stops every connector, then flushes the scorer so nothing queued is
// lost.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping relay service...")

	var g errgroup.Group
	for _, h := range s.handles {
		g.Go(func() error {
			h.Stop()
			return nil
		})
	}
	_ = g.Wait()

	if s.batch != nil {
		s.batch.Stop(ctx)
	}
	if s.ownsStore {
		_ = s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "relay service stopped")
}

// Router returns the sink connectors emit into. It is nil before Start.
func (s *Service) Router() *Router {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.router
}

// Store returns the event log.
func (s *Service) Store() repository.Store { return s.store }

// Sources lists the configured connector names.
func (s *Service) Sources() []string {
	out := make([]string, 0, len(s.connectors))
	for _, c := range s.connectors {
		out = append(out, c.Name())
	}
	return out
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"classification": s.classifier != nil,
		"tier2":          s.scorer != nil,
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	stats["uptime"] = time.Since(s.startedAt).Round(time.Millisecond).Seconds()

	sources := make(map[string]string, len(s.handles))
	for _, h := range s.handles {
		sources[h.Name()] = h.State().String()
	}
	stats["sources"] = sources

	if n, err := s.store.Len(ctx); err == nil {
		stats["log_length"] = n
		metrics.UpdateLogLength(n)
	}
	stats["router"] = s.router.Stats()

	stats["scorer"] = s.batch.Stats()
	stats["scorer_queue"] = s.batch.QueueLen()
	return stats
}
