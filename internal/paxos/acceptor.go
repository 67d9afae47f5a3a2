package paxos

import (
	"sync"

	"github.com/go-kit/kit/log"
)

// acceptorStorage is the subset of storage.Storage the Acceptor needs.
// Declared locally (rather than importing internal/storage) to avoid a
// storage <-> paxos import cycle, since storage.Storage is itself
// defined in terms of paxos.IID/Ballot/Value.
type acceptorStorage interface {
	SavePromised(iid IID, ballot Ballot) error
	LoadPromised(iid IID) (Ballot, error)
	SaveAccepted(iid IID, ballot Ballot, value Value) error
	LoadAccepted(iid IID) (Ballot, Value, error)
}

// Acceptor implements the voter role. Unlike Proposer, it may be invoked
// from whatever goroutine a transport delivers messages on, so every
// method takes its own lock.
type Acceptor struct {
	id      AcceptorID
	storage acceptorStorage
	logger  log.Logger

	mu sync.Mutex
}

// NewAcceptor constructs an Acceptor backed by storage. storage must
// already contain (or be ready to receive) per-IID promise/accept state;
// the Acceptor does no bulk recovery pass at startup; it asks storage
// for an instance's prior state lazily, the first time that IID is
// touched.
func NewAcceptor(id AcceptorID, storage acceptorStorage, logger log.Logger) *Acceptor {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Acceptor{
		id:      id,
		storage: storage,
		logger:  log.With(logger, "acceptor_id", id),
	}
}

// HandlePrepare implements rule 1: once a ballot is promised, reject any
// earlier PREPARE or ACCEPT for that instance. On success it reports
// whatever value (if any) this acceptor has already accepted, so the
// proposer can adopt it instead of clobbering it with its own.
func (a *Acceptor) HandlePrepare(req PrepareRequest) PromiseAck {
	a.mu.Lock()
	defer a.mu.Unlock()

	promised, err := a.storage.LoadPromised(req.IID)
	if err != nil {
		panic("paxos: acceptor storage failure loading promised ballot: " + err.Error())
	}

	if req.Ballot <= promised {
		DebugLog(a.logger, "event", "prepare_rejected", "iid", req.IID, "ballot", req.Ballot, "promised", promised)
		return PromiseAck{
			IID:             req.IID,
			AcceptorID:      a.id,
			Ballot:          promised,
			OK:              false,
			HighestPromised: promised,
		}
	}

	if err := a.storage.SavePromised(req.IID, req.Ballot); err != nil {
		panic("paxos: acceptor storage failure saving promised ballot: " + err.Error())
	}

	valueBallot, value, err := a.storage.LoadAccepted(req.IID)
	if err != nil {
		panic("paxos: acceptor storage failure loading accepted value: " + err.Error())
	}

	DebugLog(a.logger, "event", "prepare_promised", "iid", req.IID, "ballot", req.Ballot)
	return PromiseAck{
		IID:             req.IID,
		AcceptorID:      a.id,
		Ballot:          req.Ballot,
		OK:              true,
		HighestPromised: req.Ballot,
		ValueBallot:     valueBallot,
		Value:           value,
	}
}

// HandleAccept implements rule 2: accept a value only at a ballot no
// lower than the highest one promised. The >= (not >) is deliberate —
// an acceptor must accept at exactly the ballot it promised, which is
// the entire point of having promised it.
func (a *Acceptor) HandleAccept(req AcceptRequest) AcceptedAck {
	a.mu.Lock()
	defer a.mu.Unlock()

	promised, err := a.storage.LoadPromised(req.IID)
	if err != nil {
		panic("paxos: acceptor storage failure loading promised ballot: " + err.Error())
	}

	if req.Ballot < promised {
		DebugLog(a.logger, "event", "accept_rejected", "iid", req.IID, "ballot", req.Ballot, "promised", promised)
		return AcceptedAck{
			IID:        req.IID,
			AcceptorID: a.id,
			Ballot:     promised,
			OK:         false,
		}
	}

	if err := a.storage.SavePromised(req.IID, req.Ballot); err != nil {
		panic("paxos: acceptor storage failure saving promised ballot: " + err.Error())
	}
	if err := a.storage.SaveAccepted(req.IID, req.Ballot, req.Value); err != nil {
		panic("paxos: acceptor storage failure saving accepted value: " + err.Error())
	}

	DebugLog(a.logger, "event", "accept_ok", "iid", req.IID, "ballot", req.Ballot)
	return AcceptedAck{
		IID:         req.IID,
		AcceptorID:  a.id,
		Ballot:      req.Ballot,
		OK:          true,
		ValueBallot: req.Ballot,
	}
}

// State returns this acceptor's current (promised, accepted-at,
// accepted-value) for iid, for diagnostics and tests.
func (a *Acceptor) State(iid IID) (promised, acceptedAt Ballot, value Value) {
	a.mu.Lock()
	defer a.mu.Unlock()
	promised, _ = a.storage.LoadPromised(iid)
	acceptedAt, value, _ = a.storage.LoadAccepted(iid)
	return promised, acceptedAt, value
}
