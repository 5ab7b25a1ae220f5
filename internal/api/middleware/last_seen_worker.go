package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TerminalToucher records that terminals were seen.
type TerminalToucher interface {
	TouchLastSeen(ctx context.Context, terminalIDs []uuid.UUID) error
}

// LastSeenWorker updates terminals.last_seen_at asynchronously, with
// debouncing and batching, so authentication never waits on a write.
type LastSeenWorker struct {
	terminals TerminalToucher
	logger    *slog.Logger

	updateCh chan uuid.UUID

	recentlyUpdated map[uuid.UUID]time.Time
	mu              sync.RWMutex

	debounceInterval time.Duration
	batchInterval    time.Duration
	maxBatchSize     int

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type LastSeenWorkerConfig struct {
	BufferSize       int           // Channel buffer size (default: 1000)
	DebounceInterval time.Duration // Min interval between updates for same terminal (default: 1 minute)
	BatchInterval    time.Duration // Interval to flush a batch (default: 5 seconds)
	MaxBatchSize     int           // Max terminals per batch (default: 100)
}

func DefaultLastSeenWorkerConfig() LastSeenWorkerConfig {
	return LastSeenWorkerConfig{
		BufferSize:       1000,
		DebounceInterval: 1 * time.Minute,
		BatchInterval:    5 * time.Second,
		MaxBatchSize:     100,
	}
}

func NewLastSeenWorker(terminals TerminalToucher, logger *slog.Logger, config LastSeenWorkerConfig) *LastSeenWorker {
	defaults := DefaultLastSeenWorkerConfig()
	if config.BufferSize == 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.DebounceInterval == 0 {
		config.DebounceInterval = defaults.DebounceInterval
	}
	if config.BatchInterval == 0 {
		config.BatchInterval = defaults.BatchInterval
	}
	if config.MaxBatchSize == 0 {
		config.MaxBatchSize = defaults.MaxBatchSize
	}

	return &LastSeenWorker{
		terminals:        terminals,
		logger:           logger.With("component", "last_seen_worker"),
		updateCh:         make(chan uuid.UUID, config.BufferSize),
		recentlyUpdated:  make(map[uuid.UUID]time.Time),
		debounceInterval: config.DebounceInterval,
		batchInterval:    config.BatchInterval,
		maxBatchSize:     config.MaxBatchSize,
		done:             make(chan struct{}),
	}
}

func (w *LastSeenWorker) Start() {
	w.wg.Add(1)
	go w.run()
	w.logger.Info("last seen worker started",
		"buffer_size", cap(w.updateCh),
		"debounce_interval", w.debounceInterval,
		"batch_interval", w.batchInterval,
	)
}

// Stop flushes the pending batch and waits for the worker to exit.
func (w *LastSeenWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		w.logger.Info("last seen worker stopped")
	})
}

// Enqueue never blocks: when the buffer is full the update is dropped.
func (w *LastSeenWorker) Enqueue(terminalID uuid.UUID) {
	w.mu.RLock()
	lastUpdate, exists := w.recentlyUpdated[terminalID]
	w.mu.RUnlock()

	if exists && time.Since(lastUpdate) < w.debounceInterval {
		return
	}

	select {
	case w.updateCh <- terminalID:
	default:
		w.logger.Debug("last seen update dropped, buffer full", "terminal_id", terminalID)
	}
}

func (w *LastSeenWorker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.batchInterval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(5 * time.Minute)
	defer cleanupTicker.Stop()

	var batch []uuid.UUID

	for {
		select {
		case <-w.done:
			if len(batch) > 0 {
				w.processBatch(batch)
			}
			return

		case id := <-w.updateCh:
			batch = append(batch, id)
			if len(batch) >= w.maxBatchSize {
				w.processBatch(batch)
				batch = nil
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.processBatch(batch)
				batch = nil
			}

		case <-cleanupTicker.C:
			w.cleanupDebounceMap()
		}
	}
}

func (w *LastSeenWorker) processBatch(ids []uuid.UUID) {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.terminals.TouchLastSeen(ctx, unique); err != nil {
		w.logger.Error("failed to update last seen", "count", len(unique), "error", err)
		return
	}

	now := time.Now()
	w.mu.Lock()
	for _, id := range unique {
		w.recentlyUpdated[id] = now
	}
	w.mu.Unlock()

	w.logger.Debug("batch last seen update", "count", len(unique))
}

func (w *LastSeenWorker) cleanupDebounceMap() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	for id, lastUpdate := range w.recentlyUpdated {
		if now.Sub(lastUpdate) > 2*w.debounceInterval {
			delete(w.recentlyUpdated, id)
		}
	}
}
