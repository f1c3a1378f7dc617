// File: internal/store/keeper.go
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Keeper owns the in-memory counter set. A single goroutine (Run) holds the
// map and services all mutations through channels, so concurrent sessions
// never touch shared state directly.
type Keeper struct {
	store Store
	log   *zap.Logger

	incs    chan string
	flushes chan chan error
	snaps   chan chan Counters
	done    chan struct{}
}

// NewKeeper wires a Keeper onto the given backing store. Run must be started
// before the accessors are used.
func NewKeeper(s Store, logger *zap.Logger) *Keeper {
	return &Keeper{
		store:   s,
		log:     logger.Named("store.keeper"),
		incs:    make(chan string, 64),
		flushes: make(chan chan error),
		snaps:   make(chan chan Counters),
		done:    make(chan struct{}),
	}
}

// Run loads the persisted counters and services requests until ctx is
// cancelled, then performs a final flush. It returns the final flush error,
// if any.
func (k *Keeper) Run(ctx context.Context) error {
	defer close(k.done)

	counters, err := k.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load counters: %w", err)
	}
	k.log.Info("Counter store loaded", zap.Int("labels", len(counters)))

	for {
		select {
		case <-ctx.Done():
			// Drain increments that were queued before cancellation so the
			// final flush does not drop them.
			for {
				select {
				case label := <-k.incs:
					counters[label]++
					continue
				default:
				}
				break
			}
			if err := k.store.Save(counters); err != nil {
				k.log.Error("Final counter flush failed", zap.Error(err))
				return err
			}
			return nil

		case label := <-k.incs:
			counters[label]++

		case reply := <-k.flushes:
			reply <- k.store.Save(counters)

		case reply := <-k.snaps:
			reply <- counters.Clone()
		}
	}
}

// Increment bumps the counter for label. It never blocks past ctx.
func (k *Keeper) Increment(ctx context.Context, label string) error {
	select {
	case k.incs <- label:
		return nil
	case <-k.done:
		return fmt.Errorf("counter keeper is stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush persists the current counters and waits for the result.
func (k *Keeper) Flush(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case k.flushes <- reply:
	case <-k.done:
		return fmt.Errorf("counter keeper is stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the current counters.
func (k *Keeper) Snapshot(ctx context.Context) (Counters, error) {
	reply := make(chan Counters, 1)
	select {
	case k.snaps <- reply:
	case <-k.done:
		return nil, fmt.Errorf("counter keeper is stopped")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case c := <-reply:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
