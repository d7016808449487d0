package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/lifequest/internal/services/events"
	"github.com/jwebster45206/lifequest/internal/services/queue"
	"github.com/jwebster45206/lifequest/pkg/game"
	queuePkg "github.com/jwebster45206/lifequest/pkg/queue"
)

const (
	// pollTimeout bounds each BLPOP so shutdown is noticed.
	pollTimeout = 5 * time.Second
	lockTTL     = 30 * time.Second
	// lockRefresh is how often a running turn extends its lock; a turn
	// can chain several model calls and outlive lockTTL.
	lockRefresh = lockTTL / 3
	// errorBackoff is the pause after an infrastructure error.
	errorBackoff = time.Second
)

// releaseScript deletes the lock only if this worker still owns it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// extendScript resets the lock TTL only if this worker still owns it.
var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// TurnHandler runs one inbound event as a turn.
type TurnHandler interface {
	HandleEvent(ctx context.Context, ev game.InboundEvent) (game.Result, error)
}

// PlayerSweeper closes yesterday for one player.
type PlayerSweeper interface {
	RunPlayer(ctx context.Context, playerID string, now time.Time) (bool, error)
}

// Worker pulls turn requests off the queue and runs them one at a time,
// holding a per-player lock so a player's turns never interleave.
type Worker struct {
	id          string
	queue       *queue.TurnQueue
	turns       TurnHandler
	sweeper     PlayerSweeper
	broadcaster *events.Broadcaster
	redisClient *redis.Client
	log         *slog.Logger
	clock       func() time.Time
	lockRefresh time.Duration
}

// New creates a worker. An empty workerID gets a random one.
func New(q *queue.TurnQueue, turns TurnHandler, sweeper PlayerSweeper, redisClient *redis.Client, log *slog.Logger, workerID string) *Worker {
	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	return &Worker{
		id:          workerID,
		queue:       q,
		turns:       turns,
		sweeper:     sweeper,
		broadcaster: events.NewBroadcaster(redisClient, log),
		redisClient: redisClient,
		log:         log.With("worker_id", workerID),
		clock:       time.Now,
		lockRefresh: lockRefresh,
	}
}

func (w *Worker) ID() string { return w.id }

// Run processes requests until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Worker starting")
	for {
		if ctx.Err() != nil {
			w.log.Info("Worker shutting down")
			return nil
		}
		if _, err := w.ProcessNext(ctx, pollTimeout); err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Error("Error processing request", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(errorBackoff):
			}
		}
	}
}

// ProcessNext waits up to timeout for one request and handles it. It
// reports whether a request was taken off the queue.
func (w *Worker) ProcessNext(ctx context.Context, timeout time.Duration) (bool, error) {
	req, err := w.queue.BlockingDequeue(ctx, timeout)
	if err != nil {
		return false, err
	}
	if req == nil {
		return false, nil
	}

	log := w.log.With("request_id", req.RequestID, "player_id", req.PlayerID, "type", req.Type)
	log.Debug("Received request from queue")

	locked, err := w.acquirePlayerLock(ctx, req.PlayerID)
	if err != nil {
		if _, qerr := w.queue.Requeue(ctx, req); qerr != nil {
			log.Error("Failed to re-queue request", "error", qerr)
		}
		return true, fmt.Errorf("failed to acquire player lock: %w", err)
	}
	if !locked {
		// Another worker is running this player's turn.
		kept, err := w.queue.Requeue(ctx, req)
		if err != nil {
			return true, err
		}
		if !kept {
			log.Warn("Request dead-lettered after waiting on a locked player", "attempts", req.Attempts)
		} else {
			log.Debug("Player locked, request re-queued", "attempts", req.Attempts)
		}
		return true, nil
	}
	defer w.releasePlayerLock(req.PlayerID)
	stop := w.holdPlayerLock(ctx, req.PlayerID)
	defer stop()

	return true, w.process(ctx, log, req)
}

func (w *Worker) process(ctx context.Context, log *slog.Logger, req *queuePkg.Request) error {
	start := time.Now()
	switch req.Type {
	case queuePkg.RequestTypeSweep:
		closed, err := w.sweeper.RunPlayer(ctx, req.PlayerID, w.clock())
		if err != nil {
			return fmt.Errorf("failed to sweep player: %w", err)
		}
		log.Info("Player swept", "closed", closed)
		return nil

	case queuePkg.RequestTypeEvent:
		kind := string(req.Event.Kind)
		if err := w.broadcaster.PublishRequestProcessing(ctx, req.PlayerID, req.RequestID, kind); err != nil {
			log.Warn("Failed to publish processing event", "error", err)
		}

		res, err := w.turns.HandleEvent(ctx, *req.Event)
		if err != nil {
			// The orchestrator already rendered a reply for the player.
			log.Warn("Turn failed", "error", err, "error_kind", game.KindOf(err))
			if pubErr := w.broadcaster.PublishRequestFailed(ctx, req.PlayerID, req.RequestID, res, err.Error()); pubErr != nil {
				log.Warn("Failed to publish failure event", "error", pubErr)
			}
			return nil
		}

		elapsed := time.Since(start).Milliseconds()
		if err := w.broadcaster.PublishRequestCompleted(ctx, req.PlayerID, req.RequestID, res, elapsed); err != nil {
			log.Warn("Failed to publish completion event", "error", err)
		}
		log.Info("Turn processed", "intent", res.Intent, "duration_ms", elapsed)
		return nil
	}
	return fmt.Errorf("unknown request type: %s", req.Type)
}

func lockKey(playerID string) string {
	return fmt.Sprintf("player-lock:%s", playerID)
}

// acquirePlayerLock returns false when another worker holds the player.
func (w *Worker) acquirePlayerLock(ctx context.Context, playerID string) (bool, error) {
	ok, err := w.redisClient.SetNX(ctx, lockKey(playerID), w.id, lockTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// holdPlayerLock keeps extending the lock until the returned func is
// called. It gives up once the lock belongs to someone else.
func (w *Worker) holdPlayerLock(ctx context.Context, playerID string) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(w.lockRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			n, err := extendScript.Run(ctx, w.redisClient, []string{lockKey(playerID)}, w.id, lockTTL.Milliseconds()).Int()
			switch {
			case err != nil:
				if ctx.Err() == nil {
					w.log.Warn("Failed to extend player lock", "error", err, "player_id", playerID)
				}
			case n == 0:
				w.log.Warn("Player lock lost mid-turn", "player_id", playerID)
				return
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// releasePlayerLock runs on a fresh context so a cancelled turn still
// frees the player.
func (w *Worker) releasePlayerLock(playerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := releaseScript.Run(ctx, w.redisClient, []string{lockKey(playerID)}, w.id).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		w.log.Error("Failed to release player lock", "error", err, "player_id", playerID)
	}
}
