package paxos

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/go-kit/kit/log"
)

type ballotVotes struct {
	value Value
	seen  map[AcceptorID]struct{}
}

// Learner discovers which value was chosen per instance by tallying the
// LearnNotice broadcasts acceptors emit on every successful ACCEPT. It
// does not participate in choosing a value — only the proposer/acceptor
// exchange does that — so a learner bug can only cost liveness (a client
// waits longer than it should), never safety.
type Learner struct {
	quorum int
	logger log.Logger

	mu      sync.Mutex
	tallies *treemap.Map // IID -> map[Ballot]*ballotVotes
	chosen  *treemap.Map // IID -> Value, once a ballot reaches quorum
}

// NewLearner constructs a Learner that considers a value chosen once
// quorum distinct acceptors report accepting it at the same ballot.
func NewLearner(quorum int, logger log.Logger) *Learner {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Learner{
		quorum:  quorum,
		logger:  logger,
		tallies: treemap.NewWith(iidComparator),
		chosen:  treemap.NewWith(iidComparator),
	}
}

// HandleLearn folds one LearnNotice into the per-instance tally. Once
// quorum acceptors have reported the same (ballot, value) pair for an
// IID, that value is recorded as chosen and further notices for that IID
// are checked for (but not expected to ever show) disagreement.
func (l *Learner) HandleLearn(n LearnNotice) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.chosen.Get(n.IID); ok {
		if !bytes.Equal(v.(Value), n.Value) {
			panic(fmt.Sprintf("paxos: protocol violation: learner saw two different chosen values for iid %d", n.IID))
		}
		return
	}

	var byBallot map[Ballot]*ballotVotes
	if v, ok := l.tallies.Get(n.IID); ok {
		byBallot = v.(map[Ballot]*ballotVotes)
	} else {
		byBallot = make(map[Ballot]*ballotVotes)
		l.tallies.Put(n.IID, byBallot)
	}

	bv, ok := byBallot[n.Ballot]
	if !ok {
		bv = &ballotVotes{value: n.Value, seen: make(map[AcceptorID]struct{}, l.quorum)}
		byBallot[n.Ballot] = bv
	} else if !bytes.Equal(bv.value, n.Value) {
		panic(fmt.Sprintf("paxos: protocol violation: two acceptors accepted different values at iid %d ballot %d", n.IID, n.Ballot))
	}
	bv.seen[n.AcceptorID] = struct{}{}

	if len(bv.seen) >= l.quorum {
		l.chosen.Put(n.IID, bv.value)
		l.tallies.Remove(n.IID)
		DebugLog(l.logger, "event", "value_chosen", "iid", n.IID, "ballot", n.Ballot)
	}
}

// GetChosenValue returns the value chosen for iid and true, or (nil,
// false) if no value has reached quorum yet.
func (l *Learner) GetChosenValue(iid IID) (Value, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.chosen.Get(iid)
	if !ok {
		return nil, false
	}
	return v.(Value), true
}
