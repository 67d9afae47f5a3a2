// Package node wires a Proposer, Acceptor and Learner to a Transport and
// a Storage, and owns the single goroutine event loop that is allowed to
// touch the Proposer. Every other role — Acceptor, Learner — guards its
// own state with a mutex and may safely be called from whatever
// goroutine the transport delivers on; the Proposer carries none, so
// Node funnels every Proposer-affecting event (an incoming message, a
// client Propose call, a periodic timeout pass) through one loop.
package node

import (
	"errors"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	tw "github.com/msackman/gotimerwheel"

	"github.com/senutpal/quorum/internal/paxos"
	"github.com/senutpal/quorum/internal/storage"
	"github.com/senutpal/quorum/internal/transport"
)

// ErrStopped is returned by Propose once the node's event loop has
// exited.
var ErrStopped = errors.New("node: stopped")

const (
	tickGranularity = 10 * time.Millisecond
	beatInterval    = 10 * time.Millisecond
)

// Config bundles everything NewNode needs to wire one participant.
// Setting ProposerID to zero disables the proposer role on this node
// (it still acts as acceptor and learner) — that mirrors how not every
// host in a real deployment needs to propose.
type Config struct {
	ID         transport.NodeID
	AcceptorID paxos.AcceptorID
	ProposerID int

	MaxProposers    int
	Quorum          int
	ClosureQuorum   int
	InstanceTimeout time.Duration
	// PreexecWindow caps how many instances a proposer on this node
	// keeps in PREPARING at once, so one slow round doesn't stall every
	// later proposal behind it.
	PreexecWindow int
}

// Node runs one cluster participant: it dispatches inbound protocol
// messages to the local acceptor/learner/proposer and drives the
// proposer's timeout and pipelining policy on a timer.
type Node struct {
	cfg       Config
	proposer  *paxos.Proposer // nil if cfg.ProposerID == 0
	acceptor  *paxos.Acceptor
	learner   *paxos.Learner
	transport transport.Transport
	logger    log.Logger

	timerWheel *tw.TimerWheel

	proposeCh chan []byte
	tickCh    chan struct{}
	stopCh    chan struct{}
	wg        sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewNode constructs a Node. storage backs the local acceptor; it is
// the caller's responsibility to supply one that actually persists if
// this deployment needs to survive a crash.
func NewNode(cfg Config, t transport.Transport, s storage.Storage, logger log.Logger, metrics *paxos.Metrics) (*Node, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "node_id", cfg.ID)

	n := &Node{
		cfg:        cfg,
		acceptor:   paxos.NewAcceptor(cfg.AcceptorID, s, logger),
		learner:    paxos.NewLearner(cfg.Quorum, logger),
		transport:  t,
		logger:     logger,
		timerWheel: tw.NewTimerWheel(time.Now(), tickGranularity),
		proposeCh:  make(chan []byte, 64),
		tickCh:     make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
	}

	if cfg.ProposerID != 0 {
		p, err := paxos.NewProposer(paxos.Config{
			ID:              cfg.ProposerID,
			MaxProposers:    cfg.MaxProposers,
			Quorum:          cfg.Quorum,
			ClosureQuorum:   cfg.ClosureQuorum,
			InstanceTimeout: cfg.InstanceTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		p.SetMetrics(metrics)
		n.proposer = p
	}

	return n, nil
}

// Start launches the receive loop, the tick beater, and the owning
// event-loop goroutine. It returns immediately.
func (n *Node) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running {
		return
	}
	n.running = true

	envelopes := make(chan transport.Envelope, 256)
	n.wg.Add(3)
	go n.receiveLoop(envelopes)
	go n.beat()
	go n.run(envelopes)

	if n.proposer != nil {
		n.scheduleTimeoutPass()
	}
}

// Stop signals every Node goroutine to exit and waits for them to do so.
func (n *Node) Stop() {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return
	}
	n.running = false
	close(n.stopCh)
	n.mu.Unlock()
	n.wg.Wait()
	n.transport.Close()
}

func (n *Node) receiveLoop(out chan<- transport.Envelope) {
	defer n.wg.Done()
	for {
		env, err := n.transport.Receive()
		if err != nil {
			return
		}
		select {
		case out <- env:
		case <-n.stopCh:
			return
		}
	}
}

// beat only signals that time has passed; it never touches the timer
// wheel itself. The wheel's AdvanceTo call (and whatever callbacks it
// fires, including onTimeoutPass) happens in run(), the single goroutine
// allowed to touch proposer-adjacent state.
func (n *Node) beat() {
	defer n.wg.Done()
	ticker := time.NewTicker(beatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
			select {
			case n.tickCh <- struct{}{}:
			default:
			}
		}
	}
}

func (n *Node) run(envelopes <-chan transport.Envelope) {
	defer n.wg.Done()
	for {
		select {
		case <-n.stopCh:
			return
		case env := <-envelopes:
			n.dispatch(env)
		case v := <-n.proposeCh:
			if n.proposer == nil {
				continue
			}
			if err := n.proposer.Propose(v); err != nil {
				paxos.DebugLog(n.logger, "event", "propose_rejected", "err", err)
				continue
			}
			n.driveProposer()
		case <-n.tickCh:
			if n.proposer != nil {
				n.timerWheel.AdvanceTo(time.Now(), 32)
			}
		}
	}
}

func (n *Node) envelope(t transport.MessageType, payload interface{}) transport.Envelope {
	return transport.Envelope{From: n.cfg.ID, Type: t, Payload: payload}
}

func (n *Node) dispatch(env transport.Envelope) {
	switch env.Type {
	case transport.MessageTypePrepare:
		req := env.Payload.(paxos.PrepareRequest)
		ack := n.acceptor.HandlePrepare(req)
		n.transport.Send(env.From, n.envelope(transport.MessageTypePromise, ack))

	case transport.MessageTypeAccept:
		req := env.Payload.(paxos.AcceptRequest)
		ack := n.acceptor.HandleAccept(req)
		n.transport.Send(env.From, n.envelope(transport.MessageTypeAccepted, ack))
		if ack.OK {
			n.transport.Broadcast(n.envelope(transport.MessageTypeLearn, paxos.LearnNotice{
				IID:        ack.IID,
				AcceptorID: ack.AcceptorID,
				Ballot:     ack.Ballot,
				Value:      req.Value,
			}))
		}

	case transport.MessageTypePromise:
		if n.proposer == nil {
			return
		}
		ack := env.Payload.(paxos.PromiseAck)
		if req, preempt := n.proposer.ReceivePromise(ack); preempt {
			n.transport.Broadcast(n.envelope(transport.MessageTypePrepare, req))
		}
		n.driveProposer()

	case transport.MessageTypeAccepted:
		if n.proposer == nil {
			return
		}
		ack := env.Payload.(paxos.AcceptedAck)
		if req, preempt := n.proposer.ReceiveAccepted(ack); preempt {
			n.transport.Broadcast(n.envelope(transport.MessageTypePrepare, req))
		}
		n.driveProposer()

	case transport.MessageTypeLearn:
		n.learner.HandleLearn(env.Payload.(paxos.LearnNotice))
	}
}

// driveProposer calls Proposer.Accept until it reports nothing ready
// (it promotes instances in IID order and stops at the first one that is
// not ready), broadcasting an ACCEPT for each, then opens fresh PREPARE
// rounds up to PreexecWindow.
func (n *Node) driveProposer() {
	for {
		req, ok := n.proposer.Accept()
		if !ok {
			break
		}
		n.transport.Broadcast(n.envelope(transport.MessageTypeAccept, req))
	}
	for n.proposer.PreparedCount() < n.cfg.PreexecWindow {
		req := n.proposer.Prepare()
		n.transport.Broadcast(n.envelope(transport.MessageTypePrepare, req))
	}
}

func (n *Node) scheduleTimeoutPass() {
	if err := n.timerWheel.ScheduleEventIn(n.cfg.InstanceTimeout, n.onTimeoutPass); err != nil {
		panic("node: failed to schedule timeout pass: " + err.Error())
	}
}

// onTimeoutPass runs as a gotimerwheel callback: AdvanceTo invokes it
// synchronously from within run()'s select loop (see run/beat above), so
// it is safe for it to touch the proposer directly.
func (n *Node) onTimeoutPass() {
	it := n.proposer.NewTimeoutIterator(time.Now())
	for {
		req, ok := it.Next()
		if !ok {
			break
		}
		n.transport.Broadcast(n.envelope(transport.MessageTypePrepare, req))
	}
	n.driveProposer()
	n.scheduleTimeoutPass()
}

// Propose hands value to this node's proposer. It is safe to call from
// any goroutine; the value is delivered to the owning event loop over a
// channel rather than touching the proposer directly.
func (n *Node) Propose(value []byte) error {
	if n.proposer == nil {
		return errors.New("node: this node has no proposer role")
	}
	select {
	case n.proposeCh <- value:
		return nil
	case <-n.stopCh:
		return ErrStopped
	}
}

// GetChosenValue reports the value this node's learner has recorded as
// chosen for iid, if any.
func (n *Node) GetChosenValue(iid paxos.IID) (paxos.Value, bool) {
	return n.learner.GetChosenValue(iid)
}

// ID returns this node's transport address.
func (n *Node) ID() transport.NodeID {
	return n.cfg.ID
}
