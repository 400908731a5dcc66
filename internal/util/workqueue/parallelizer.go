package workqueue

import (
	"context"
	"runtime/debug"
	"sync"

	log "homey-assistant-golang/logger"
)

type DoWorkPieceFunc func(piece int)

// ParallelizeUntil runs N independent pieces of work on up to `workers`
// goroutines until all pieces are done or the context is canceled.
func ParallelizeUntil(ctx context.Context, workers, pieces int, doWorkPiece DoWorkPieceFunc) {
	if pieces <= 0 {
		return
	}

	var stop <-chan struct{}
	if ctx != nil {
		stop = ctx.Done()
	}

	toProcess := make(chan int, pieces)
	for i := 0; i < pieces; i++ {
		toProcess <- i
	}
	close(toProcess)

	if pieces < workers {
		workers = pieces
	}

	wg := sync.WaitGroup{}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer func() {
				wg.Done()
				if r := recover(); r != nil {
					log.Errorf("work piece panic: %v", r)
					debug.PrintStack()
				}
			}()
			for piece := range toProcess {
				select {
				case <-stop:
					return
				default:
					doWorkPiece(piece)
				}
			}
		}()
	}
	wg.Wait()
}
