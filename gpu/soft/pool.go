package soft

import (
	"runtime"
	"sync"
)

// parallelThreshold is the minimum work group count to use the pool.
// Below this, running inline is faster than the channel round trips.
const parallelThreshold = 4

// workChunk represents a range of work groups for a worker to process.
type workChunk struct {
	inv         *Invocation
	first, last int
}

// workerPool runs work group ranges on persistent goroutines.
type workerPool struct {
	numWorkers int

	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool
}

func newWorkerPool(workers int) *workerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &workerPool{numWorkers: workers}
}

// start launches the worker goroutines.
func (p *workerPool) start() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stop signals all workers to exit and waits for them.
func (p *workerPool) stop() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *workerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			chunk.inv.program.Run(chunk.inv, chunk.first, chunk.last)
			p.doneChan <- struct{}{}
		}
	}
}

// run executes groups [0, n) of inv, splitting them across the workers.
func (p *workerPool) run(inv *Invocation, n int) {
	if n < parallelThreshold || p.numWorkers == 1 {
		inv.program.Run(inv, 0, n)
		return
	}

	if !p.running {
		p.start()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		first := w * chunkSize
		last := first + chunkSize
		if last > n {
			last = n
		}
		if first >= last {
			continue
		}
		p.workChan <- workChunk{inv: inv, first: first, last: last}
		dispatched++
	}

	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}
