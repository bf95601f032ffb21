// Package workerpool implements WorkerPool, the Healthy/Deadlocked state
// machine that spawns, feeds, and retires the per-chunk worker goroutines
// that drive Chunk.CollapseNext to completion (§4.6).
//
// Each worker is connected to the pool by a "phone": a pair of one-way Go
// channels glued together, one per direction. Nothing in this package names
// a Phone type - the pair is just the two channel fields on workerHandle,
// matching the reference implementation's own shrug about the concept
// needing a name in a language with first-class channels.
package workerpool

import (
	"context"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/willcliffy/live-wave-function-collapse/cell"
	"github.com/willcliffy/live-wave-function-collapse/chunk"
	"github.com/willcliffy/live-wave-function-collapse/director"
	"github.com/willcliffy/live-wave-function-collapse/internal/wfclog"
	"github.com/willcliffy/live-wave-function-collapse/library3d"
)

// CommandType is the instruction sent down a worker's phone.
type CommandType int

const (
	// Collapse asks the worker to run one Chunk.CollapseNext step and
	// report the result.
	Collapse CommandType = iota
	// Stop asks the worker to exit. Unused by the pool itself (it retires
	// workers by closing their command channel instead), but kept for
	// parity with the reference protocol and available to callers that
	// want to address a single worker directly.
	Stop
)

// Command is one message sent to a worker.
type Command struct {
	Type CommandType
}

// UpdateType is the kind of result a worker reports back.
type UpdateType int

const (
	// UpdateOk carries the cells changed by one collapse step; the chunk
	// isn't finished yet.
	UpdateOk UpdateType = iota
	// UpdateDone means the chunk has no cell left to collapse.
	UpdateDone
	// UpdateError means the worker hit an unrecoverable error (typically
	// chunk.ErrOvercollapsed) and has stopped working this chunk.
	UpdateError
)

// Update is one message a worker reports back to the pool.
type Update struct {
	ChunkIndex int
	Type       UpdateType
	Changes    []*cell.Cell
	Err        error
}

// State is the pool's own health, distinct from any individual chunk's
// ChunkState.
type State int

const (
	// Healthy is the normal operating state: fill idle slots, drain
	// updates.
	Healthy State = iota
	// Deadlocked means the director returned an Error while trying to
	// fill a slot. The pool stops assigning new work and, once every live
	// worker has drained out, defers to the pruner (§4.8).
	Deadlocked
)

func (s State) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Deadlocked:
		return "deadlocked"
	default:
		return "unknown"
	}
}

// PruneOutcome is the result of a Pruner's recovery pass.
type PruneOutcome int

const (
	// PruneOk means the pruner changed something: the pool may resume.
	PruneOk PruneOutcome = iota
	// PruneNoEffect means the pruner found nothing to fix: the map is
	// stuck and the caller should stop.
	PruneNoEffect
)

// Pruner is the deadlock-recovery pass the pool calls once it has no live
// workers left. MapValidator implements this; it's expressed here as an
// interface so this package doesn't need to import the validator package.
type Pruner interface {
	Prune() (changes []*cell.Cell, outcome PruneOutcome, err error)
}

// workerHandle is one live worker's half of its phone, plus the cancel func
// for its goroutine's context (the pool's errgroup joins it on Stop).
type workerHandle struct {
	cmd    chan Command
	update chan Update
	cancel context.CancelFunc
}

// WorkerPool holds up to poolSize in-flight workers, each bound to one
// chunk index, routing their updates to a MapDirector.
type WorkerPool struct {
	library  *library3d.Library3D[*cell.Cell]
	poolSize int
	newRNG   func(chunkIndex int) *rand.Rand
	log      wfclog.Logger

	state   State
	workers map[int]*workerHandle
	group   *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a WorkerPool over library, holding up to poolSize concurrent
// workers. newRNG produces a fresh *rand.Rand for a worker each time it's
// assigned a chunk (a seed function, not a shared generator, since
// *rand.Rand is not safe for concurrent use) - tests typically supply a
// deterministic source so a run's collapse order is reproducible.
func New(library *library3d.Library3D[*cell.Cell], poolSize int, newRNG func(chunkIndex int) *rand.Rand, log wfclog.Logger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	return &WorkerPool{
		library:  library,
		poolSize: poolSize,
		newRNG:   newRNG,
		log:      wfclog.OrDefault(log),
		state:    Healthy,
		workers:  make(map[int]*workerHandle),
		group:    group,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// State reports the pool's current health.
func (p *WorkerPool) State() State { return p.state }

// Len returns the number of workers currently in flight.
func (p *WorkerPool) Len() int { return len(p.workers) }

// TickResult is what one Tick produced.
type TickResult struct {
	// Changes is every cell changed by this tick, across all workers and
	// any deadlock-recovery prune pass, in no particular order.
	Changes []*cell.Cell
	// Stop is true when the pool can make no further progress: either the
	// pruner ran and found nothing to fix, or a fatal error occurred.
	Stop bool
}

// Tick advances the pool by one step (§4.6):
//
// When Deadlocked with live workers remaining, it only drains them (no new
// work is assigned) until they've all retired. When Deadlocked with none
// left, it calls pruner.Prune: on PruneOk the pool returns to Healthy and
// surfaces the pruner's changes; on PruneNoEffect it reports Stop.
//
// When Healthy, it first tops up idle slots from the director (an Error
// outcome transitions to Deadlocked rather than aborting the tick), then
// drains every live worker's phone non-blockingly, dispatching Ok/Done/
// Error updates.
func (p *WorkerPool) Tick(d *director.MapDirector, pruner Pruner) TickResult {
	if p.state == Deadlocked {
		if len(p.workers) > 0 {
			return TickResult{Changes: p.drainWorkers(d)}
		}

		changes, outcome, err := pruner.Prune()
		if err != nil {
			p.log.Err().Err(err).Log("prune failed")
			return TickResult{Stop: true}
		}
		if outcome == PruneNoEffect {
			return TickResult{Stop: true}
		}

		p.state = Healthy
		return TickResult{Changes: changes}
	}

	var changes []*cell.Cell
	for len(p.workers) < p.poolSize {
		initial, assigned, err := p.fillSlot(d)
		if err != nil {
			p.log.Err().Err(err).Log("director deadlocked")
			p.state = Deadlocked
			break
		}
		if !assigned {
			break
		}
		changes = append(changes, initial...)
	}

	changes = append(changes, p.drainWorkers(d)...)
	return TickResult{Changes: changes}
}

// fillSlot asks the director for the next chunk and, if one is ready,
// spawns a worker for it and issues its first Collapse command.
func (p *WorkerPool) fillSlot(d *director.MapDirector) (initial []*cell.Cell, assigned bool, err error) {
	outcome, index, c, initialChanges, err := d.GetNextChunk()
	if err != nil {
		return nil, false, err
	}
	if outcome != director.ChunkReady {
		return nil, false, nil
	}

	ctx, cancel := context.WithCancel(p.ctx)
	handle := &workerHandle{
		cmd:    make(chan Command, 1),
		update: make(chan Update, 1),
		cancel: cancel,
	}
	p.workers[index] = handle

	rng := p.newRNG(index)
	p.group.Go(func() error {
		runWorker(ctx, c, p.library, index, rng, handle.cmd, handle.update)
		return nil
	})

	handle.cmd <- Command{Type: Collapse}
	return initialChanges, true, nil
}

// drainWorkers non-blockingly drains every live worker's update channel and
// dispatches each message: Ok forwards the change set and re-issues a
// Collapse; Done completes the chunk and retires the worker; Error resets
// the chunk (returning it to Ready) and retires the worker. A reset failure
// is logged, not propagated - matching the reference pool, which can't do
// much else with it besides leave the chunk wherever resetChunk left it.
func (p *WorkerPool) drainWorkers(d *director.MapDirector) []*cell.Cell {
	var changes []*cell.Cell
	var retire []int

	for index, handle := range p.workers {
	drain:
		for {
			select {
			case update := <-handle.update:
				switch update.Type {
				case UpdateOk:
					changes = append(changes, update.Changes...)
					handle.cmd <- Command{Type: Collapse}
				case UpdateDone:
					d.CompleteChunk(index)
					retire = append(retire, index)
				case UpdateError:
					resetChanges, err := d.ResetChunk(index)
					if err != nil {
						p.log.Err().Int("chunk", index).Err(err).Log("reset chunk failed")
					} else {
						changes = append(changes, resetChanges...)
					}
					retire = append(retire, index)
				}
			default:
				break drain
			}
		}
	}

	for _, index := range retire {
		p.retire(index)
	}

	return changes
}

// retire closes a worker's command channel (its run loop exits on the next
// receive) and drops its handle.
func (p *WorkerPool) retire(index int) {
	handle, ok := p.workers[index]
	if !ok {
		return
	}
	close(handle.cmd)
	handle.cancel()
	delete(p.workers, index)
}

// Stop retires every live worker and waits for their goroutines to exit.
func (p *WorkerPool) Stop() error {
	for index := range p.workers {
		p.retire(index)
	}
	p.cancel()
	return p.group.Wait()
}

// runWorker is a worker goroutine bound to one chunk: it blocks on cmd,
// runs one collapse step per Collapse command, and reports the result on
// update, until the chunk is done, an unrecoverable error occurs, cmd is
// closed, or ctx is cancelled.
func runWorker(ctx context.Context, c *chunk.Chunk, library *library3d.Library3D[*cell.Cell], chunkIndex int, rng *rand.Rand, cmd <-chan Command, update chan<- Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case command, ok := <-cmd:
			if !ok {
				return
			}
			if command.Type == Stop {
				return
			}

			result := collapseStep(c, library, rng)
			result.ChunkIndex = chunkIndex
			select {
			case update <- result:
			case <-ctx.Done():
				return
			}
			if result.Type != UpdateOk {
				return
			}
		}
	}
}

// collapseStep checks out the chunk's own bounds, runs one CollapseNext
// step, and checks the range back in - even on error, so a failed step
// never leaks a checked-out range.
func collapseStep(c *chunk.Chunk, library *library3d.Library3D[*cell.Cell], rng *rand.Rand) Update {
	start, end := c.Bounds()
	r, err := library.CheckOutRange(start, end)
	if err != nil {
		return Update{Type: UpdateError, Err: err}
	}

	done, changes, collapseErr := c.CollapseNext(rng, r)

	if cerr := library.CheckInRange(r); cerr != nil && collapseErr == nil {
		collapseErr = cerr
	}

	if collapseErr != nil {
		return Update{Type: UpdateError, Err: collapseErr}
	}
	if done {
		return Update{Type: UpdateDone}
	}
	return Update{Type: UpdateOk, Changes: changes}
}
