package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"sfclink/internal/data/history"
	"sfclink/internal/data/queue"
	"sfclink/internal/shared/observability"
)

const (
	historyBatchSize     = 8
	historyFlushInterval = 100 * time.Millisecond
)

func (a *App) startHistoryWorker() {
	if a.history == nil || a.workerCancel != nil {
		return
	}
	a.historyQueue = queue.NewBounded[history.Build](historyQueueCapacity)
	ctx, cancel := context.WithCancel(context.Background())
	a.workerCancel = cancel
	a.workerDone = make(chan struct{})
	go a.runHistoryWorker(ctx)
}

func (a *App) runHistoryWorker(ctx context.Context) {
	defer close(a.workerDone)

	for {
		batch, err := a.historyQueue.Drain(ctx, historyBatchSize, historyFlushInterval)
		if errors.Is(err, context.Canceled) {
			return
		}
		if err != nil && !errors.Is(err, io.EOF) {
			slog.Warn("history queue dequeue failed", "error", err)
			continue
		}

		for _, build := range batch {
			if saveErr := a.history.SaveBuild(build); saveErr != nil {
				observability.HistoryWriteErrorsTotal.Inc()
				slog.Warn("failed to save build history", "build", build.ID, "error", saveErr)
			}
		}
		observability.HistoryQueueDepth.Set(float64(a.historyQueue.Len()))

		if errors.Is(err, io.EOF) {
			return
		}
	}
}

// recordBuild queues a build for the history worker. It never blocks.
func (a *App) recordBuild(build history.Build) {
	if a.historyQueue == nil {
		return
	}
	if !a.historyQueue.Offer(build) {
		observability.HistoryWriteErrorsTotal.Inc()
		slog.Warn("history queue full, dropping build record", "build", build.ID)
	}
	observability.HistoryQueueDepth.Set(float64(a.historyQueue.Len()))
}

// stopHistoryWorker closes the queue and waits for the worker to drain it.
func (a *App) stopHistoryWorker(ctx context.Context) error {
	if a.workerCancel == nil {
		return nil
	}
	a.historyQueue.Close()
	select {
	case <-a.workerDone:
	case <-ctx.Done():
		a.workerCancel()
		<-a.workerDone
		a.workerCancel = nil
		return ctx.Err()
	}
	a.workerCancel()
	a.workerCancel = nil
	return nil
}
