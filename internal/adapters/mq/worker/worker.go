// Package worker runs the Tier 2 batch scorer: it drains the post queue into
// batches, scores them with a language model and writes survivors to the log.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/lobstream/internal/adapters/mq/queue"
	"github.com/okian/lobstream/internal/domain/model"
	"github.com/okian/lobstream/internal/domain/scoring"
	"github.com/okian/lobstream/pkg/logger"
	"github.com/okian/lobstream/pkg/metrics"
)

const (
	defaultBatchSize     = 15
	defaultFlushInterval = 30 * time.Second
)

// Appender is the event log write path.
type Appender interface {
	Append(ctx context.Context, fields map[string]string) (string, error)
}

// Stats are the scorer's running counters.
type Stats struct {
	Batches   int64 `json:"batches"`
	Sent      int64 `json:"sent"`
	Kept      int64 `json:"kept"`
	Discarded int64 `json:"discarded"`
	Errors    int64 `json:"errors"`
	Fallbacks int64 `json:"fallbacks"`
}

// BatchScorer accumulates classified posts and scores them in batches.
// A nil scoring.Scorer disables Tier 2: batches pass straight through as Tier 1.
type BatchScorer struct {
	queue  queue.Queue
	scorer scoring.Scorer
	log    Appender
	policy scoring.Policy

	batchSize     int
	flushInterval time.Duration
	now           func() time.Time

	batches   atomic.Int64
	sent      atomic.Int64
	kept      atomic.Int64
	discarded atomic.Int64
	errors    atomic.Int64
	fallbacks atomic.Int64

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	loopDone  chan struct{}
	inflight  sync.WaitGroup
	started   atomic.Bool

	logger logger.Logger
}

// NewBatchScorer creates a scorer reading from q and writing to log.
func NewBatchScorer(q queue.Queue, scorer scoring.Scorer, log Appender, opts ...Option) *BatchScorer {
	b := &BatchScorer{
		queue:         q,
		scorer:        scorer,
		log:           log,
		policy:        scoring.DefaultPolicy(),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		now:           time.Now,
		stop:          make(chan struct{}),
		loopDone:      make(chan struct{}),
		logger:        logger.Get().Named("scorer"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Enabled reports whether posts are sent to the language model.
func (b *BatchScorer) Enabled() bool { return b.scorer != nil }

// Start launches the batching loop. It returns immediately.
func (b *BatchScorer) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		b.started.Store(true)
		go b.run(ctx)
		b.logger.Info(ctx, "scorer started",
			logger.Bool("llm", b.Enabled()),
			logger.Int("batch_size", b.batchSize),
			logger.Duration("flush_interval", b.flushInterval),
			logger.Float64("threshold", b.policy.Threshold))
	})
}

// Enqueue hands a post to Tier 2. When the queue cannot take it the post is
// written immediately as Tier 1, so the caller never has to retry.
func (b *BatchScorer) Enqueue(ctx context.Context, p model.Post) bool { //nolint:gocritic // hugeParam: posts travel by value
	if err := b.queue.Enqueue(ctx, p); err != nil {
		b.logger.Debug(ctx, "scorer queue rejected post", logger.String("source", p.Source), logger.Error(err))
		b.passthrough(context.WithoutCancel(ctx), []model.Post{p})
		return false
	}
	return true
}

// Stop flushes everything still pending as Tier 1 and waits for in-flight
// batches to finish writing.
func (b *BatchScorer) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		close(b.stop)
		if b.started.Load() {
			<-b.loopDone
		} else {
			b.drain(context.WithoutCancel(ctx), nil)
		}
		b.inflight.Wait()
		s := b.Stats()
		b.logger.Info(ctx, "scorer stopped",
			logger.Int64("batches", s.Batches),
			logger.Int64("sent", s.Sent),
			logger.Int64("kept", s.Kept),
			logger.Int64("discarded", s.Discarded),
			logger.Int64("errors", s.Errors),
			logger.Int64("fallbacks", s.Fallbacks))
	})
}

// Stats returns a snapshot of the counters.
func (b *BatchScorer) Stats() Stats {
	return Stats{
		Batches:   b.batches.Load(),
		Sent:      b.sent.Load(),
		Kept:      b.kept.Load(),
		Discarded: b.discarded.Load(),
		Errors:    b.errors.Load(),
		Fallbacks: b.fallbacks.Load(),
	}
}

// QueueLen reports posts waiting for a batch.
func (b *BatchScorer) QueueLen() int { return b.queue.Len() }

func (b *BatchScorer) run(ctx context.Context) {
	defer close(b.loopDone)

	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	batch := make([]model.Post, 0, b.batchSize)
	in := b.queue.Dequeue()
	for {
		select {
		case <-b.stop:
			b.drain(context.WithoutCancel(ctx), batch)
			return
		case <-ctx.Done():
			b.drain(context.WithoutCancel(ctx), batch)
			return
		case p, ok := <-in:
			if !ok {
				b.drain(context.WithoutCancel(ctx), batch)
				return
			}
			batch = append(batch, p)
			if len(batch) >= b.batchSize {
				b.dispatch(ctx, batch)
				batch = make([]model.Post, 0, b.batchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				b.dispatch(ctx, batch)
				batch = make([]model.Post, 0, b.batchSize)
			}
		}
	}
}

// drain closes the queue and writes pending plus queued posts as Tier 1.
func (b *BatchScorer) drain(ctx context.Context, pending []model.Post) {
	_ = b.queue.Close()
	for p := range b.queue.Dequeue() {
		pending = append(pending, p)
	}
	metrics.UpdateScorerQueueSize(0)
	if len(pending) > 0 {
		b.logger.Info(ctx, "flushing pending posts as tier 1", logger.Int("size", len(pending)))
		b.passthrough(ctx, pending)
	}
}

func (b *BatchScorer) dispatch(ctx context.Context, batch []model.Post) {
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		b.process(ctx, batch)
	}()
}

func (b *BatchScorer) process(ctx context.Context, batch []model.Post) {
	b.batches.Add(1)
	b.sent.Add(int64(len(batch)))
	write := context.WithoutCancel(ctx)

	if b.scorer == nil {
		metrics.RecordScorerBatch("skipped")
		b.passthrough(write, batch)
		return
	}

	batchID := uuid.NewString()
	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = p.Text
	}

	start := time.Now()
	results, err := b.scorer.Score(ctx, texts)
	metrics.RecordLLMLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		b.errors.Add(1)
		metrics.RecordScorerBatch("failed")
		metrics.RecordErrorByComponent("scorer", "llm")
		b.logger.Warn(ctx, "batch scoring failed, falling back to tier 1",
			logger.String("batch", batchID),
			logger.Int("size", len(batch)),
			logger.Error(err))
		b.passthrough(write, batch)
		return
	}
	metrics.RecordScorerBatch("scored")

	var kept, discarded, fallback int
	for i, p := range batch {
		var r scoring.Result
		if i < len(results) {
			r = results[i]
		}
		switch b.policy.Decide(r) {
		case scoring.VerdictKeep:
			rel := *r.Relevance
			p.Relevance = &rel
			p.Sentiment = scoring.NormalizeSentiment(r.Sentiment)
			p.Tier = model.TierTwo
			b.write(write, p)
			kept++
		case scoring.VerdictDiscard:
			discarded++
		default:
			p.Tier = model.TierOne
			b.write(write, p)
			fallback++
		}
	}

	b.kept.Add(int64(kept))
	b.discarded.Add(int64(discarded))
	b.fallbacks.Add(int64(fallback))
	metrics.RecordScorerPosts(scoring.VerdictKeep.String(), kept)
	metrics.RecordScorerPosts(scoring.VerdictDiscard.String(), discarded)
	metrics.RecordScorerPosts(scoring.VerdictFallback.String(), fallback)

	b.logger.Info(ctx, "batch scored",
		logger.String("batch", batchID),
		logger.Int("size", len(batch)),
		logger.Int("kept", kept),
		logger.Int("discarded", discarded),
		logger.Int("fallback", fallback))
}

// passthrough writes posts as Tier 1 without relevance or sentiment.
func (b *BatchScorer) passthrough(ctx context.Context, posts []model.Post) {
	b.fallbacks.Add(int64(len(posts)))
	metrics.RecordScorerPosts(scoring.VerdictFallback.String(), len(posts))
	for _, p := range posts {
		p.Relevance = nil
		p.Sentiment = ""
		p.Tier = model.TierOne
		b.write(ctx, p)
	}
}

func (b *BatchScorer) write(ctx context.Context, p model.Post) { //nolint:gocritic // hugeParam: posts travel by value
	if p.Timestamp.IsZero() {
		p.Timestamp = b.now()
	}
	if _, err := b.log.Append(ctx, p.ToFields()); err != nil {
		metrics.RecordErrorByComponent("scorer", "append")
		b.logger.Error(ctx, "event log append failed",
			logger.String("source", p.Source),
			logger.Error(err))
	}
}
