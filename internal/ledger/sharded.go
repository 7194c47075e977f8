package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ShardedEngine replays events in parallel across clients.
//
// Each client belongs to exactly one shard (client % shards). A shard is a
// private Engine fed by a single goroutine through a FIFO queue, and one
// dispatcher reads the source in order. Events of a client therefore keep
// their relative order and an account is only ever touched by its shard.
type ShardedEngine struct {
	logger    *zap.Logger
	shards    []*Engine
	queueSize int
}

// NewShardedEngine creates a sharded engine with the given number of shards.
// Options are applied to every shard.
func NewShardedEngine(logger *zap.Logger, shards, queueSize int, opts ...Option) (*ShardedEngine, error) {
	if shards < 1 {
		return nil, fmt.Errorf("invalid shard count %d", shards)
	}
	if queueSize < 1 {
		return nil, fmt.Errorf("invalid queue size %d", queueSize)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	se := &ShardedEngine{
		logger:    logger,
		shards:    make([]*Engine, shards),
		queueSize: queueSize,
	}
	for i := range se.shards {
		se.shards[i] = NewEngine(logger.With(zap.Int("shard", i)), opts...)
	}
	return se, nil
}

// Run dispatches events from src to the shards and waits for all of them
// to drain. The first source error or cancellation stops every shard.
func (se *ShardedEngine) Run(ctx context.Context, src Source) error {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	queues := make([]chan Event, len(se.shards))
	for i := range queues {
		queues[i] = make(chan Event, se.queueSize)
	}

	for i, shard := range se.shards {
		shard, queue := shard, queues[i]
		g.Go(func() error {
			for ev := range queue {
				_ = shard.Execute(ev)
			}
			return nil
		})
	}

	var n int
	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		for {
			if err := gctx.Err(); err != nil {
				return err
			}
			ev, err := src.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read event: %w", err)
			}
			select {
			case queues[se.shardFor(ev.Client)] <- ev:
				n++
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	err := g.Wait()
	if m := se.shards[0].metrics; m != nil {
		m.ReplayDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return err
	}

	se.logger.Info("Sharded replay finished",
		zap.Int("events", n),
		zap.Int("shards", len(se.shards)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Accounts merges the shard accounts. Call it after Run has returned.
func (se *ShardedEngine) Accounts() map[ClientID]*Account {
	total := 0
	for _, s := range se.shards {
		total += s.Len()
	}
	merged := make(map[ClientID]*Account, total)
	for _, s := range se.shards {
		for id, acc := range s.Accounts() {
			merged[id] = acc
		}
	}
	return merged
}

func (se *ShardedEngine) shardFor(client ClientID) int {
	return int(client) % len(se.shards)
}
