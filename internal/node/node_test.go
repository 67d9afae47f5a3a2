package node

import (
	"testing"
	"time"

	"github.com/senutpal/quorum/internal/paxos"
	"github.com/senutpal/quorum/internal/storage"
	"github.com/senutpal/quorum/internal/transport"
)

// S7 — end-to-end via node/transport/acceptor/learner: three in-process
// acceptor nodes and one proposer node over the memory transport; the
// proposer submits a value and every acceptor node's learner converges
// on it.
func TestEndToEndConsensus(t *testing.T) {
	net := transport.NewNetwork()

	const quorum = 2
	acceptorIDs := []paxos.AcceptorID{1, 2, 3}
	acceptors := make([]*Node, 0, len(acceptorIDs))
	for _, id := range acceptorIDs {
		nodeID := transport.NodeID(nodeName(id))
		n, err := NewNode(Config{
			ID:              nodeID,
			AcceptorID:      id,
			MaxProposers:    10,
			Quorum:          quorum,
			InstanceTimeout: time.Second,
			PreexecWindow:   2,
		}, net.Join(nodeID), storage.NewMemoryStorage(), nil, nil)
		if err != nil {
			t.Fatalf("NewNode(acceptor %d): %v", id, err)
		}
		acceptors = append(acceptors, n)
	}

	proposer, err := NewNode(Config{
		ID:              "proposer-1",
		ProposerID:      1,
		MaxProposers:    10,
		Quorum:          quorum,
		InstanceTimeout: time.Second,
		PreexecWindow:   2,
	}, net.Join("proposer-1"), storage.NewMemoryStorage(), nil, nil)
	if err != nil {
		t.Fatalf("NewNode(proposer): %v", err)
	}

	all := append(append([]*Node{}, acceptors...), proposer)
	for _, n := range all {
		n.Start()
	}
	defer func() {
		for _, n := range all {
			n.Stop()
		}
	}()

	if err := proposer.Propose([]byte("hello, paxos!")); err != nil {
		t.Fatalf("Propose: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		allChosen := true
		for _, n := range acceptors {
			if _, ok := n.GetChosenValue(1); !ok {
				allChosen = false
				break
			}
		}
		if allChosen {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	for _, n := range acceptors {
		v, ok := n.GetChosenValue(1)
		if !ok {
			t.Fatalf("node %s never learned a chosen value", n.ID())
		}
		if string(v) != "hello, paxos!" {
			t.Fatalf("node %s learned %q, want %q", n.ID(), v, "hello, paxos!")
		}
	}
}

func nodeName(id paxos.AcceptorID) string {
	switch id {
	case 1:
		return "acceptor-1"
	case 2:
		return "acceptor-2"
	case 3:
		return "acceptor-3"
	default:
		return "acceptor-x"
	}
}
