package paxos

import "time"

// tableKind distinguishes which of the proposer's two instance tables an
// overdue entry came from, so Next() knows where to look it up again and
// how to treat it: prepare-table entries are retried at the same ballot,
// accept-table entries are preempted to a new one.
type tableKind int

const (
	tablePrepare tableKind = iota
	tableAccept
)

type overdueEntry struct {
	iid  IID
	kind tableKind
}

// TimeoutIterator walks every instance that has sat too long without
// reaching its next milestone and re-issues a PREPARE for it. It exists
// because liveness in Paxos depends on some proposer eventually winning a
// round outright; without periodic re-proposal, two proposers can
// alternate preempting each other's instance forever.
//
// Construction takes a snapshot of the instances that were overdue at
// that moment; Next() replays that snapshot rather than scanning and
// mutating the live tables in the same pass. Mutating a tree while
// ranging over it is undefined in general, and gods' treemap offers no
// iteration guarantee strong enough to risk it.
type TimeoutIterator struct {
	p       *Proposer
	pending []overdueEntry
	pos     int
}

// NewTimeoutIterator scans the proposer's tables once, collecting:
//   - prepare-table instances whose quorum has not yet been reached and
//     whose createdAt is older than cfg.InstanceTimeout (these get
//     retried at their current ballot — a quorum-reached instance is
//     just waiting on a value or a downstream Accept()/ReceiveAccepted
//     call, and re-PREPAREing it would only reset progress already
//     made);
//   - accept-table instances whose quorum has not yet been reached and
//     whose createdAt is older than the timeout (these get preempted to
//     a fresh ballot, since phase 2 stalling usually means a competing
//     proposer is in the way).
//
// The Proposer itself owns no clock-driven timer; something in the
// owning event loop (internal/node, ticked by a gotimerwheel) is
// expected to call this periodically.
func (p *Proposer) NewTimeoutIterator(now time.Time) *TimeoutIterator {
	it := &TimeoutIterator{p: p}

	for _, k := range p.prepareTable.Keys() {
		v, _ := p.prepareTable.Get(k)
		inst := v.(*instance)
		if inst.quorum.reached() {
			continue
		}
		if now.Sub(inst.createdAt) >= p.cfg.InstanceTimeout {
			it.pending = append(it.pending, overdueEntry{iid: inst.iid, kind: tablePrepare})
		}
	}
	for _, k := range p.acceptTable.Keys() {
		v, _ := p.acceptTable.Get(k)
		inst := v.(*instance)
		if inst.quorum.reached() {
			continue
		}
		if now.Sub(inst.createdAt) >= p.cfg.InstanceTimeout {
			it.pending = append(it.pending, overdueEntry{iid: inst.iid, kind: tableAccept})
		}
	}
	return it
}

// Next returns the next overdue instance's PrepareRequest and true, or
// (zero value, false) once the snapshot is exhausted. An entry whose
// instance has meanwhile been removed from its table (chosen, reaped,
// or already preempted by an intervening PROMISE/ACCEPTED within this
// same pass) is skipped rather than treated as an error: by the time
// Next() replays the snapshot the world may have moved on, and that's
// expected.
func (it *TimeoutIterator) Next() (PrepareRequest, bool) {
	p := it.p
	for it.pos < len(it.pending) {
		e := it.pending[it.pos]
		it.pos++

		switch e.kind {
		case tablePrepare:
			v, found := p.prepareTable.Get(e.iid)
			if !found {
				continue
			}
			inst := v.(*instance)
			if inst.quorum.reached() {
				continue
			}
			inst.createdAt = p.clock()
			DebugLog(p.logger, "event", "timeout_retry", "iid", inst.iid, "ballot", inst.ballot)
			return PrepareRequest{IID: inst.iid, Ballot: inst.ballot}, true

		case tableAccept:
			v, found := p.acceptTable.Get(e.iid)
			if !found {
				continue
			}
			inst := v.(*instance)
			if inst.quorum.reached() {
				continue
			}
			DebugLog(p.logger, "event", "timeout_preempt", "iid", inst.iid, "ballot", inst.ballot)
			req := p.preempt(inst)
			p.acceptTable.Remove(e.iid)
			p.prepareTable.Put(inst.iid, inst)
			return req, true
		}
	}
	return PrepareRequest{}, false
}

// Len reports how many overdue instances remain in this snapshot.
func (it *TimeoutIterator) Len() int {
	return len(it.pending) - it.pos
}
