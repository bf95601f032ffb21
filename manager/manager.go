// Package manager implements Manager, the top-level Idle/Working/Stopped
// state machine that owns the MapDirector and WorkerPool and bridges
// host commands to cell-change events (§4.7).
package manager

import (
	"context"

	"github.com/google/uuid"

	"github.com/willcliffy/live-wave-function-collapse/cell"
	"github.com/willcliffy/live-wave-function-collapse/director"
	"github.com/willcliffy/live-wave-function-collapse/geom"
	"github.com/willcliffy/live-wave-function-collapse/internal/wfclog"
	"github.com/willcliffy/live-wave-function-collapse/prototype"
	"github.com/willcliffy/live-wave-function-collapse/workerpool"
)

// State is the manager's own lifecycle state, distinct from any chunk's or
// the pool's health.
type State int

const (
	Idle State = iota
	Working
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Working:
		return "working"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// CommandType is one inbound host instruction.
type CommandType int

const (
	NoOp CommandType = iota
	Start
	Pause
	Stop
)

func (c CommandType) String() string {
	switch c {
	case NoOp:
		return "noop"
	case Start:
		return "start"
	case Pause:
		return "pause"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// Command is one message sent down the host's command channel.
type Command struct {
	Type CommandType
}

// CellChange is one cell's new possibility set, as reported to the host.
// NewProtos is the ordered list of prototypes the cell now holds - a single
// prototype once the cell has collapsed, more while it's still undecided.
type CellChange struct {
	Position  geom.Vector3
	NewProtos []*prototype.Prototype
}

// ProtoIDs returns the ordered prototype ids, for hosts that only want the
// catalogue key rather than the full Prototype value.
func (c CellChange) ProtoIDs() []string {
	ids := make([]string, len(c.NewProtos))
	for i, p := range c.NewProtos {
		ids[i] = p.ID
	}
	return ids
}

// UpdateType distinguishes the two kinds of outbound message.
type UpdateType int

const (
	// UpdateState carries a manager state transition.
	UpdateState UpdateType = iota
	// UpdateChanges carries one tick's worth of cell changes.
	UpdateChanges
)

// Update is one message sent up the host's update channel.
type Update struct {
	Type    UpdateType
	State   State
	Changes []CellChange
}

// Manager is the top-level state machine: it owns the WorkerPool and
// MapDirector, reads commands, and reports state transitions and cell
// changes back to the host.
type Manager struct {
	state State
	runID uuid.UUID

	cmd     <-chan Command
	updates chan<- Update

	pool     *workerpool.WorkerPool
	director *director.MapDirector
	pruner   workerpool.Pruner

	log wfclog.Logger
}

// New creates a Manager reading commands from cmd and writing updates to
// updates. pool and director must share the same Library3D; pruner is
// typically a *validator.MapValidator over that same library. runID is
// logged on the run's start and exit log lines; the other log lines and
// the Update values do not carry it. Callers that don't care can pass
// uuid.New() themselves.
func New(cmd <-chan Command, updates chan<- Update, pool *workerpool.WorkerPool, d *director.MapDirector, pruner workerpool.Pruner, runID uuid.UUID, log wfclog.Logger) *Manager {
	return &Manager{
		state:    Idle,
		runID:    runID,
		cmd:      cmd,
		updates:  updates,
		pool:     pool,
		director: d,
		pruner:   pruner,
		log:      wfclog.OrDefault(log),
	}
}

// State reports the manager's current lifecycle state.
func (m *Manager) State() State { return m.state }

// Run drives the state machine until it reaches Stopped, either because the
// host sent Stop, the command channel disconnected, ctx was cancelled, or
// the pool could make no further progress (deadlock with a fruitless
// prune). It always retires the pool's workers before returning.
func (m *Manager) Run(ctx context.Context) {
	m.log.Info().Str("run_id", m.runID.String()).Log("manager: starting run")
	defer func() {
		if err := m.pool.Stop(); err != nil {
			m.log.Err().Err(err).Log("manager: pool stop failed")
		}
	}()

	for m.state != Stopped {
		switch m.state {
		case Idle:
			select {
			case <-ctx.Done():
				m.setState(Stopped)
			case command, ok := <-m.cmd:
				if !ok {
					m.setState(Stopped)
					continue
				}
				m.onCommand(command)
			}

		case Working:
			select {
			case <-ctx.Done():
				m.setState(Stopped)
				continue
			case command, ok := <-m.cmd:
				if !ok {
					m.setState(Stopped)
					continue
				}
				m.onCommand(command)
				continue
			default:
			}

			result := m.pool.Tick(m.director, m.pruner)
			if len(result.Changes) > 0 {
				m.report(Update{Type: UpdateChanges, Changes: toCellChanges(result.Changes)})
			}
			if result.Stop {
				m.setState(Stopped)
			}
		}
	}

	m.log.Info().Str("run_id", m.runID.String()).Log("manager: exiting")
}

func (m *Manager) onCommand(command Command) {
	m.log.Debug().Str("command", command.Type.String()).Log("manager: command received")
	switch command.Type {
	case NoOp:
	case Start:
		m.setState(Working)
	case Pause:
		m.setState(Idle)
	case Stop:
		m.setState(Stopped)
	}
}

func (m *Manager) setState(state State) {
	m.state = state
	m.log.Info().Str("state", state.String()).Log("manager: state transition")
	m.report(Update{Type: UpdateState, State: state})
}

// report forwards update to the host. The send blocks until the host
// receives it (or the update channel is buffered with headroom) - the
// host is expected to keep draining its update channel whenever it has
// sent Start, matching §5's FIFO-per-worker forwarding guarantee.
func (m *Manager) report(update Update) {
	m.updates <- update
}

func toCellChanges(changes []*cell.Cell) []CellChange {
	out := make([]CellChange, len(changes))
	for i, c := range changes {
		out[i] = CellChange{Position: c.Position(), NewProtos: c.Possibilities()}
	}
	return out
}
