package paxos

import "testing"

func TestQuorumTracker(t *testing.T) {
	q := newQuorumTracker(2)
	if q.reached() {
		t.Fatalf("reached() true before any votes")
	}
	if !q.add(1) {
		t.Fatalf("add(1) = false, want true")
	}
	if q.add(1) {
		t.Fatalf("add(1) second time = true, want false (duplicate)")
	}
	if q.reached() {
		t.Fatalf("reached() true with only 1 distinct vote, target 2")
	}
	if !q.add(2) {
		t.Fatalf("add(2) = false, want true")
	}
	if !q.reached() {
		t.Fatalf("reached() false with 2 distinct votes, target 2")
	}
	if q.count() != 2 {
		t.Fatalf("count() = %d, want 2", q.count())
	}

	q.reset(3)
	if q.reached() || q.count() != 0 {
		t.Fatalf("reset did not clear state: reached=%v count=%d", q.reached(), q.count())
	}
}

func TestNextBallot(t *testing.T) {
	first := nextBallot(0, 3, 10)
	if first != 13 {
		t.Fatalf("nextBallot(0, 3, 10) = %d, want 13", first)
	}
	second := nextBallot(first, 3, 10)
	if second != 23 {
		t.Fatalf("nextBallot(13, 3, 10) = %d, want 23", second)
	}
	if uint64(second)%10 != 3 {
		t.Fatalf("ballot %d not congruent to proposer id 3 mod 10", second)
	}
}

// S8 — closure threshold: with Q=3 and ClosureQuorum=3, two matching
// PROMISEs leave the instance open and the third one closes it.
func TestClosureThresholdRequiresConfiguredCount(t *testing.T) {
	p, err := NewProposer(Config{
		ID:              1,
		MaxProposers:    10,
		Quorum:          3,
		ClosureQuorum:   3,
		InstanceTimeout: 50_000_000,
	}, nil)
	if err != nil {
		t.Fatalf("NewProposer: %v", err)
	}
	p.Propose([]byte("x"))
	prep := p.Prepare()

	p.ReceivePromise(PromiseAck{IID: prep.IID, AcceptorID: 1, Ballot: prep.Ballot, ValueBallot: 5, Value: []byte("y")})
	p.ReceivePromise(PromiseAck{IID: prep.IID, AcceptorID: 2, Ballot: prep.Ballot, ValueBallot: 5, Value: []byte("y")})

	v, _ := p.prepareTable.Get(prep.IID)
	inst := v.(*instance)
	if inst.closed {
		t.Fatalf("instance closed after only 2 matching PROMISEs, want 3 required")
	}

	p.ReceivePromise(PromiseAck{IID: prep.IID, AcceptorID: 3, Ballot: prep.Ballot, ValueBallot: 5, Value: []byte("y")})
	if !inst.closed {
		t.Fatalf("instance not closed after 3 matching PROMISEs reaching ClosureQuorum")
	}
}
