package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/okian/lobstream/internal/adapters/mq/worker"
	"github.com/okian/lobstream/internal/domain/classify"
	"github.com/okian/lobstream/internal/domain/model"
	"github.com/okian/lobstream/pkg/logger"
	"github.com/okian/lobstream/pkg/metrics"
)

const persistTimeout = 5 * time.Second

// Persister stores agent-network posts for the read models.
type Persister interface {
	PersistPost(ctx context.Context, p model.Post) error
}

// Enqueuer is the Tier 2 entry point. It falls back to Tier 1 on its own
// when no LLM is configured.
type Enqueuer interface {
	Enqueue(ctx context.Context, p model.Post) bool
}

// RouterStats counts where emitted posts went.
type RouterStats struct {
	Emitted       int64 `json:"emitted"`
	Classified    int64 `json:"classified"`
	Appended      int64 `json:"appended"`
	Enqueued      int64 `json:"enqueued"`
	AppendErrors  int64 `json:"append_errors"`
	Persisted     int64 `json:"persisted"`
	PersistErrors int64 `json:"persist_errors"`
}

// Router is the sink every connector emits into. It tags posts with Tier 1
// topics, persists agent-network posts, and sends classified posts to the
// scorer queue. Untagged posts go straight to the log.
type Router struct {
	log        worker.Appender
	classifier *classify.Classifier
	scorer     Enqueuer
	persister  Persister
	now        func() time.Time
	logger     logger.Logger

	emitted       atomic.Int64
	classified    atomic.Int64
	appended      atomic.Int64
	enqueued      atomic.Int64
	appendErrors  atomic.Int64
	persisted     atomic.Int64
	persistErrors atomic.Int64
}

// NewRouter creates a router writing to log. classifier, scorer and
// persister may be nil.
func NewRouter(log worker.Appender, classifier *classify.Classifier, scorer Enqueuer, persister Persister) *Router {
	return &Router{
		log:        log,
		classifier: classifier,
		scorer:     scorer,
		persister:  persister,
		now:        time.Now,
		logger:     logger.Get().Named("router"),
	}
}

// Emit routes one post. It never fails; append errors are logged and counted.
func (r *Router) Emit(ctx context.Context, p model.Post) { //nolint:gocritic // hugeParam: posts travel by value
	r.emitted.Add(1)
	if p.Timestamp.IsZero() {
		p.Timestamp = r.now()
	}

	if r.classifier != nil {
		if res, ok := r.classifier.Classify(p.Text); ok {
			p.Topics = res.Topics
			p.Confidence = res.Confidence
			r.classified.Add(1)
		}
	}

	if p.Community != nil && r.persister != nil {
		r.persist(ctx, p)
	}

	if len(p.Topics) > 0 && r.scorer != nil {
		r.enqueued.Add(1)
		r.scorer.Enqueue(ctx, p)
		return
	}
	r.append(ctx, p)
}

func (r *Router) persist(ctx context.Context, p model.Post) { //nolint:gocritic // hugeParam: posts travel by value
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := r.persister.PersistPost(pctx, p); err != nil {
		r.persistErrors.Add(1)
		metrics.RecordErrorByComponent("router", "persist")
		r.logger.Warn(ctx, "post persistence failed",
			logger.String("source", p.Source),
			logger.String("external_id", p.ExternalID),
			logger.Error(err))
		return
	}
	r.persisted.Add(1)
}

func (r *Router) append(ctx context.Context, p model.Post) { //nolint:gocritic // hugeParam: posts travel by value
	if _, err := r.log.Append(context.WithoutCancel(ctx), p.ToFields()); err != nil {
		r.appendErrors.Add(1)
		metrics.RecordErrorByComponent("router", "append")
		r.logger.Error(ctx, "event log append failed",
			logger.String("source", p.Source),
			logger.Error(err))
		return
	}
	r.appended.Add(1)
}

// Stats returns a snapshot of the routing counters.
func (r *Router) Stats() RouterStats {
	return RouterStats{
		Emitted:       r.emitted.Load(),
		Classified:    r.classified.Load(),
		Appended:      r.appended.Load(),
		Enqueued:      r.enqueued.Load(),
		AppendErrors:  r.appendErrors.Load(),
		Persisted:     r.persisted.Load(),
		PersistErrors: r.persistErrors.Load(),
	}
}
