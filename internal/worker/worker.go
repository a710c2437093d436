package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cesargomez89/segmentcraft/internal/app"
	"github.com/cesargomez89/segmentcraft/internal/config"
	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/logger"
	"github.com/cesargomez89/segmentcraft/internal/metrics"
)

// Worker runs a craft cycle for every fabricating chain once per work
// cycle. Chains are worked in parallel up to MaxConcurrent, and a cycle
// finishes before the next one starts, so each chain has a single writer.
type Worker struct {
	Chains        *app.ChainService
	Segments      *app.SegmentService
	Work          *app.CraftWork
	Config        *config.Config
	MaxConcurrent int
	Logger        *logger.Logger
	Now           func() time.Time

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewWorker(chains *app.ChainService, segments *app.SegmentService, work *app.CraftWork, cfg *config.Config, log *logger.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		Chains:        chains,
		Segments:      segments,
		Work:          work,
		Config:        cfg,
		MaxConcurrent: cfg.MaxConcurrentChains,
		Logger:        log.WithComponent("worker"),
		Now:           func() time.Time { return time.Now().UTC() },
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (w *Worker) Start() {
	w.Logger.Info("Starting worker", "cycle", w.Config.WorkCycle, "max_concurrent", w.MaxConcurrent)

	if n := w.ResetStuckSegments(w.ctx); n > 0 {
		w.Logger.Info("Reverted segments left crafting", "count", n)
	}

	w.wg.Add(1)
	go w.processChains()
}

func (w *Worker) Stop() {
	w.Logger.Info("Stopping worker")
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) processChains() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.Config.WorkCycle)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if err := w.RunOnce(w.ctx, w.Now()); err != nil {
				w.Logger.Warn("Work cycle finished with errors", "error", err)
			}
		}
	}
}

// RunOnce runs one craft cycle for each chain in Fabricate state. A failing
// chain does not stop the others; the first error is returned once all are
// done.
func (w *Worker) RunOnce(ctx context.Context, now time.Time) error {
	chains := w.Chains.ReadManyInState(domain.ChainStateFabricate)
	metrics.SetChainsFabricating(len(chains))
	if len(chains) == 0 {
		return nil
	}

	var (
		mu       sync.Mutex
		firstErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	if w.MaxConcurrent > 0 {
		g.SetLimit(w.MaxConcurrent)
	}
	for _, chain := range chains {
		g.Go(func() error {
			if err := w.runChain(gctx, chain, now); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if firstErr != nil {
		metrics.RecordWorkCycle("error")
		return firstErr
	}
	metrics.RecordWorkCycle("success")
	return nil
}

func (w *Worker) runChain(ctx context.Context, chain *domain.Chain, now time.Time) (err error) {
	log := w.Logger.WithChain(chain.ID, chain.ShipKey)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic in craft cycle", "panic", r)
			err = fmt.Errorf("panic in chain %s: %v", chain.ID, r)
		}
	}()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := w.Work.RunCycle(ctx, chain.ID, now); err != nil {
		log.Warn("Craft cycle failed", "error", err)
		return err
	}
	return nil
}

// ResetStuckSegments reverts the last segment of each fabricating chain if
// it was left Crafting, so the next cycle crafts it again.
func (w *Worker) ResetStuckSegments(ctx context.Context) int {
	var n int
	for _, chain := range w.Chains.ReadManyInState(domain.ChainStateFabricate) {
		last, err := w.Segments.ReadLastSegment(chain.ID)
		if err != nil || last == nil || last.State != domain.SegmentStateCrafting {
			continue
		}
		if _, err := w.Segments.Revert(ctx, last.ID); err != nil {
			w.Logger.Warn("Failed to revert stuck segment", "chain_id", chain.ID, "segment_id", last.ID, "error", err)
			continue
		}
		n++
	}
	return n
}
