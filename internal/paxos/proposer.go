package paxos

import (
	"errors"
	"fmt"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/go-kit/kit/log"
)

// ErrEmptyValue is returned by Propose for a zero-length value; an empty
// value is rejected at the API boundary rather than threaded through the
// protocol.
var ErrEmptyValue = errors.New("paxos: propose called with an empty value")

// Config carries the proposer's protocol parameters.
type Config struct {
	// ID is this proposer's unique identifier, in [1, MaxProposers).
	ID int
	// MaxProposers is B: the fixed upper bound on proposer count. Must be
	// a power of 10 so that ballot mod B == proposerID reads as the
	// low-order digits of the ballot.
	MaxProposers int
	// Quorum is Q, the number of distinct acceptors required to reach
	// quorum at a given ballot: floor(N/2)+1 for classic Paxos.
	Quorum int
	// InstanceTimeout is how long an instance may sit without reaching
	// quorum before the timeout iterator re-PREPAREs it.
	InstanceTimeout time.Duration
	// ClosureQuorum generalizes the hard-coded "2 matching PROMISEs"
	// closure heuristic into a configurable threshold. Defaults to Quorum
	// when left at zero.
	ClosureQuorum int
}

func (c Config) closureQuorum() int {
	if c.ClosureQuorum > 0 {
		return c.ClosureQuorum
	}
	return c.Quorum
}

func (c Config) validate() error {
	if c.MaxProposers <= 1 {
		return fmt.Errorf("paxos: MaxProposers must be > 1, got %d", c.MaxProposers)
	}
	if c.ID < 1 || c.ID >= c.MaxProposers {
		return fmt.Errorf("paxos: proposer id %d out of range [1, %d)", c.ID, c.MaxProposers)
	}
	if c.Quorum < 1 {
		return fmt.Errorf("paxos: Quorum must be > 0, got %d", c.Quorum)
	}
	if c.InstanceTimeout <= 0 {
		return fmt.Errorf("paxos: InstanceTimeout must be > 0, got %v", c.InstanceTimeout)
	}
	return nil
}

// Proposer drives consensus instances through phase 1 and phase 2. It is
// a passive, single-threaded state container: every method is synchronous
// and non-blocking, and it is the caller's event loop that supplies
// stimuli and drains outputs. A Proposer must never be called from more
// than one goroutine; it holds no lock of its own.
type Proposer struct {
	cfg    Config
	logger log.Logger
	clock  func() time.Time

	values [][]byte // FIFO value queue, oldest at index 0

	nextPrepareIID IID
	prepareTable   *treemap.Map // IID -> *instance, PREPARING
	acceptTable    *treemap.Map // IID -> *instance, ACCEPTING

	metrics *Metrics
}

func iidComparator(a, b interface{}) int {
	x, y := a.(IID), b.(IID)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// NewProposer constructs a Proposer for the given configuration. logger
// may be nil, in which case a no-op logger is used.
func NewProposer(cfg Config, logger log.Logger) (*Proposer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Proposer{
		cfg:          cfg,
		logger:       log.With(logger, "proposer_id", cfg.ID),
		clock:        time.Now,
		prepareTable: treemap.NewWith(iidComparator),
		acceptTable:  treemap.NewWith(iidComparator),
	}, nil
}

// SetMetrics wires optional Prometheus instrumentation. Passing nil
// disables metrics again.
func (p *Proposer) SetMetrics(m *Metrics) {
	p.metrics = m
}

// Propose enqueues value for eventual binding to a consensus instance.
// The byte slice is copied; the proposer owns its copy until it is
// delivered (the instance it was bound to reaches accept-quorum, or it is
// displaced and re-queued).
func (p *Proposer) Propose(value []byte) error {
	if len(value) == 0 {
		return ErrEmptyValue
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	p.values = append(p.values, cp)
	p.metrics.queueDepth(len(p.values))
	return nil
}

// Prepare opens a new prepare-phase instance at the next IID and the
// first ballot this proposer owns, and returns the PREPARE for the event
// loop to broadcast.
func (p *Proposer) Prepare() PrepareRequest {
	p.nextPrepareIID++
	iid := p.nextPrepareIID
	ballot := nextBallot(0, p.cfg.ID, p.cfg.MaxProposers)
	inst := newInstance(iid, ballot, p.cfg.Quorum, p.clock())
	p.prepareTable.Put(iid, inst)
	p.metrics.instancesOpen(1)
	return PrepareRequest{IID: iid, Ballot: ballot}
}

// PreparedCount returns the number of live PREPARING instances, for the
// event loop's pre-execution window policy.
func (p *Proposer) PreparedCount() int {
	return p.prepareTable.Size()
}

// ReceivePromise handles one PROMISE. It returns a preemption
// PrepareRequest (and true) if this proposer must re-run phase 1 at a
// higher ballot; otherwise it returns (zero value, false).
func (p *Proposer) ReceivePromise(ack PromiseAck) (PrepareRequest, bool) {
	v, found := p.prepareTable.Get(ack.IID)
	if !found {
		DebugLog(p.logger, "event", "promise_dropped", "reason", "not_pending", "iid", ack.IID)
		return PrepareRequest{}, false
	}
	inst := v.(*instance)

	if ack.Ballot < inst.ballot {
		DebugLog(p.logger, "event", "promise_dropped", "reason", "stale_ballot", "iid", ack.IID, "ack_ballot", ack.Ballot, "inst_ballot", inst.ballot)
		return PrepareRequest{}, false
	}

	if ack.Ballot > inst.ballot {
		DebugLog(p.logger, "event", "preempted", "phase", "prepare", "iid", ack.IID, "inst_ballot", inst.ballot, "ack_ballot", ack.Ballot)
		return p.preempt(inst), true
	}

	// ack.Ballot == inst.ballot
	if !inst.quorum.add(ack.AcceptorID) {
		DebugLog(p.logger, "event", "promise_dropped", "reason", "duplicate", "iid", ack.IID, "acceptor_id", ack.AcceptorID)
		return PrepareRequest{}, false
	}
	DebugLog(p.logger, "event", "promise_accepted", "iid", ack.IID, "acceptor_id", ack.AcceptorID)

	if len(ack.Value) > 0 {
		switch {
		case inst.value == nil:
			inst.adoptValue(ack.ValueBallot, ack.Value)
			DebugLog(p.logger, "event", "value_adopted", "iid", ack.IID, "value_ballot", ack.ValueBallot)
		case ack.ValueBallot > inst.valueBallot:
			displaced := inst.adoptValue(ack.ValueBallot, ack.Value)
			if displaced != nil {
				p.values = append(p.values, displaced)
				p.metrics.queueDepth(len(p.values))
			}
			DebugLog(p.logger, "event", "value_displaced", "iid", ack.IID, "value_ballot", ack.ValueBallot)
		case inst.matchesAdopted(ack.ValueBallot, ack.Value):
			inst.matchedValue++
			DebugLog(p.logger, "event", "value_confirmed", "iid", ack.IID, "matched", inst.matchedValue, "threshold", p.cfg.closureQuorum())
			if inst.matchedValue >= p.cfg.closureQuorum() {
				inst.closed = true
				DebugLog(p.logger, "event", "instance_closed", "iid", ack.IID, "reason", "closure_heuristic")
			}
		default:
			DebugLog(p.logger, "event", "value_ignored", "iid", ack.IID, "ack_value_ballot", ack.ValueBallot, "inst_value_ballot", inst.valueBallot)
		}
	}

	return PrepareRequest{}, false
}

// Accept drains the next ready prepare-phase instance, if any, promoting
// it to the accept table and returning the ACCEPT to broadcast.
func (p *Proposer) Accept() (AcceptRequest, bool) {
	var inst *instance
	for {
		k, v := p.prepareTable.Min()
		if k == nil {
			return AcceptRequest{}, false
		}
		candidate := v.(*instance)
		if candidate.closed {
			p.prepareTable.Remove(candidate.iid)
			p.metrics.instancesOpen(-1)
			p.metrics.closed()
			DebugLog(p.logger, "event", "instance_reaped", "iid", candidate.iid)
			continue
		}
		if !candidate.quorum.reached() {
			return AcceptRequest{}, false
		}
		inst = candidate
		break
	}

	if inst.value == nil {
		if len(p.values) == 0 {
			DebugLog(p.logger, "event", "accept_deferred", "reason", "no_value", "iid", inst.iid)
			return AcceptRequest{}, false
		}
		inst.value = p.values[0]
		p.values = p.values[1:]
		p.metrics.queueDepth(len(p.values))
	}

	p.prepareTable.Remove(inst.iid)
	inst.quorum.reset(p.cfg.Quorum)
	inst.phase = PhaseAccepting
	p.acceptTable.Put(inst.iid, inst)
	DebugLog(p.logger, "event", "accept_issued", "iid", inst.iid, "ballot", inst.ballot)

	return AcceptRequest{IID: inst.iid, Ballot: inst.ballot, Value: inst.value}, true
}

// ReceiveAccepted handles one ACCEPTED. It returns a preemption
// PrepareRequest (and true) if this proposer must re-run phase 1;
// otherwise (zero value, false).
func (p *Proposer) ReceiveAccepted(ack AcceptedAck) (PrepareRequest, bool) {
	v, found := p.acceptTable.Get(ack.IID)
	if !found {
		DebugLog(p.logger, "event", "accepted_dropped", "reason", "not_pending", "iid", ack.IID)
		return PrepareRequest{}, false
	}
	inst := v.(*instance)

	if ack.Ballot == inst.ballot {
		if ack.ValueBallot != inst.ballot {
			panic(fmt.Sprintf("paxos: protocol violation: accepted ack for iid %d at ballot %d carries value_ballot %d", ack.IID, inst.ballot, ack.ValueBallot))
		}
		if !inst.quorum.add(ack.AcceptorID) {
			DebugLog(p.logger, "event", "accepted_dropped", "reason", "duplicate", "iid", ack.IID, "acceptor_id", ack.AcceptorID)
			return PrepareRequest{}, false
		}
		if inst.quorum.reached() {
			p.acceptTable.Remove(ack.IID)
			p.metrics.instancesOpen(-1)
			p.metrics.closed()
			DebugLog(p.logger, "event", "instance_chosen", "iid", ack.IID, "ballot", inst.ballot)
		}
		return PrepareRequest{}, false
	}

	// ack.Ballot != inst.ballot: necessarily greater, since acceptors
	// never accept at a ballot lower than one they've already promised.
	DebugLog(p.logger, "event", "preempted", "phase", "accept", "iid", ack.IID, "inst_ballot", inst.ballot, "ack_ballot", ack.Ballot)
	p.acceptTable.Remove(ack.IID)
	req := p.preempt(inst)
	p.prepareTable.Put(inst.iid, inst)
	return req, true
}

// preempt bumps inst to a new, higher ballot and resets its quorum
// bookkeeping. The caller is responsible for relocating inst into the
// prepare table if it wasn't already there.
func (p *Proposer) preempt(inst *instance) PrepareRequest {
	inst.ballot = nextBallot(inst.ballot, p.cfg.ID, p.cfg.MaxProposers)
	inst.quorum.reset(p.cfg.Quorum)
	inst.matchedValue = 0
	inst.closed = false
	inst.createdAt = p.clock()
	inst.phase = PhasePreparing
	p.metrics.preempted()
	return PrepareRequest{IID: inst.iid, Ballot: inst.ballot}
}

// Free releases the proposer's state. Go's garbage collector reclaims the
// memory; Free exists to make the intent of "this proposer is done"
// explicit at call sites.
func (p *Proposer) Free() {
	p.values = nil
	p.prepareTable.Clear()
	p.acceptTable.Clear()
}
