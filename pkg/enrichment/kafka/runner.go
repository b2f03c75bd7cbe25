// Package kafka enriches pointer events from a Kafka topic with their codes
// and republishes them.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammed-shakir/geopin/internal/core/model"
	"github.com/mohammed-shakir/geopin/internal/events"
	"github.com/mohammed-shakir/geopin/internal/logger"
)

type Encoder interface {
	Encode(ctx context.Context, req model.EncodeRequest) (model.EncodeResult, error)
}

type Publisher interface {
	Publish(ev events.EncodedEvent) bool
}

type Runner struct {
	log      *slog.Logger
	cfg      EnrichmentConfig
	enc      Encoder
	pub      Publisher
	codeLen  int
	h3Res    int
	ms       *metricSet
	seq      *seqDedupe
	newID    func() string
	assigned atomic.Bool
	assignMu sync.RWMutex
	assign   map[int32]struct{}
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

type Options struct {
	Logger   *slog.Logger
	Register prometheus.Registerer
	// CodeLength and H3Res apply to every event.
	CodeLength int
	H3Res      int
}

func New(cfg EnrichmentConfig, enc Encoder, pub Publisher, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		log:     opts.Logger,
		cfg:     cfg,
		enc:     enc,
		pub:     pub,
		codeLen: opts.CodeLength,
		h3Res:   opts.H3Res,
		ms:      newMetricSet(opts.Register),
		seq:     newSeqDedupe(cfg.DedupeSize),
		newID:   func() string { return uuid.NewString() },
		assign:  map[int32]struct{}{},
	}
}

func (r *Runner) Start(ctx context.Context) error {
	if !r.cfg.Enabled {
		r.log.Info("enrichment runner disabled")
		return nil
	}
	if r.enc == nil || r.pub == nil {
		return errors.New("kafka runner: encoder and publisher are required")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = r.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = r.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = r.cfg.RebalanceTimeout
	if r.cfg.InitialOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(r.cfg.Brokers, r.cfg.GroupID, cfg)
	if err != nil {
		cancel()
		return fmt.Errorf("consumer group: %w", err)
	}

	h := &groupHandler{
		setup: func(sess sarama.ConsumerGroupSession) {
			r.assignMu.Lock()
			r.assigned.Store(true)
			r.assign = map[int32]struct{}{}
			for _, parts := range sess.Claims() {
				for _, p := range parts {
					r.assign[p] = struct{}{}
				}
			}
			r.assignMu.Unlock()
		},
		cleanup: func(sarama.ConsumerGroupSession) {
			r.assignMu.Lock()
			r.assigned.Store(false)
			r.assign = map[int32]struct{}{}
			r.assignMu.Unlock()
		},
		process: r.handleMessage,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				r.log.Error("kafka consumer group close", "err", err)
			}
		}()

		for {
			if err := group.Consume(ctx, []string{r.cfg.Topic}, h); err != nil {
				r.log.Error("kafka consume error", "err", err)
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for err := range group.Errors() {
			r.log.Error("kafka group error", "err", err)
		}
	}()

	r.log.Info("kafka enrichment runner started",
		"topic", r.cfg.Topic, "output", r.cfg.OutputTopic, "group", r.cfg.GroupID, "brokers", r.cfg.Brokers)
	return nil
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.log.Info("kafka enrichment runner stopped")
}

// Readiness reports whether the consumer currently owns partitions.
func (r *Runner) Readiness() (ready bool, partitions []int32) {
	if !r.assigned.Load() {
		return false, nil
	}
	r.assignMu.RLock()
	defer r.assignMu.RUnlock()
	for p := range r.assign {
		partitions = append(partitions, p)
	}
	return true, partitions
}

// handleMessage encodes one pointer event and publishes the result.
// Malformed, stale and rejected events are counted and skipped.
func (r *Runner) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()
	defer func() { r.ms.proc.Observe(time.Since(start).Seconds()) }()

	if !msg.Timestamp.IsZero() {
		r.ms.lagGauge.Set(time.Since(msg.Timestamp).Seconds())
	}

	var ev PointerEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		r.ms.msgs.WithLabelValues("invalid").Inc()
		r.log.Warn("skipping undecodable pointer event",
			"partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		r.ms.msgs.WithLabelValues("invalid").Inc()
		r.log.Warn("skipping invalid pointer event",
			"partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}
	ctx = logger.WithDeviceID(ctx, ev.DeviceID)

	if !r.seq.shouldApply(ev.DeviceID, ev.Seq) {
		r.ms.msgs.WithLabelValues("duplicate").Inc()
		return nil
	}

	res, err := r.enc.Encode(ctx, model.EncodeRequest{
		Coordinate: model.Coordinate{Lat: ev.Lat, Lon: ev.Lon},
		Floor:      ev.Floor,
		CodeLength: r.codeLen,
		H3Res:      r.h3Res,
	})
	if err != nil {
		r.ms.msgs.WithLabelValues("invalid").Inc()
		r.log.WarnContext(ctx, "pointer event rejected by encoder", "seq", ev.Seq, "err", err)
		return nil
	}

	ts := ev.TS
	if ts.IsZero() {
		ts = msg.Timestamp
	}
	out := events.EncodedEvent{
		ID:       r.newID(),
		DeviceID: ev.DeviceID,
		Seq:      ev.Seq,
		Lat:      res.Lat,
		Lon:      res.Lon,
		Floor:    res.Floor,
		Codes:    res.Codes,
		TS:       ts,
	}
	if !r.pub.Publish(out) {
		r.ms.msgs.WithLabelValues("dropped").Inc()
		r.log.WarnContext(ctx, "publish queue full, dropping encoded event", "seq", ev.Seq)
		return nil
	}
	r.ms.msgs.WithLabelValues("ok").Inc()
	return nil
}

type groupHandler struct {
	setup   func(sarama.ConsumerGroupSession)
	cleanup func(sarama.ConsumerGroupSession)
	process func(context.Context, *sarama.ConsumerMessage) error
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	if h.setup != nil {
		h.setup(sess)
	}
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	if h.cleanup != nil {
		h.cleanup(sess)
	}
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for msg := range claim.Messages() {
		if err := h.process(ctx, msg); err != nil {
			return err
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
