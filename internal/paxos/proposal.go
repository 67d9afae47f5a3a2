// Package paxos implements the proposer, acceptor and learner roles of a
// classic (single-decree, per-instance) Paxos protocol.
//
// The proposer is the active role: it drives instances through phase 1
// (PREPARE/PROMISE) and phase 2 (ACCEPT/ACCEPTED), adopts previously
// accepted values to preserve safety, and re-runs phase 1 at a higher
// ballot whenever it is preempted by another proposer.
package paxos

import "fmt"

// IID names one consensus slot. The proposer allocates IIDs densely,
// starting at 1; once allocated an IID is never reused.
type IID uint64

// Ballot totally orders proposal rounds across all proposers. Ballots
// issued by a given proposer always satisfy ballot mod MaxProposers ==
// proposerID, which is what makes them globally unique without any
// coordination between proposers.
type Ballot uint64

// Value is an opaque, proposer-owned byte string. A nil Value means "no
// value bound yet"; an empty, non-nil Value is never produced because
// Propose rejects empty input at the API boundary.
type Value []byte

func (v Value) String() string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%q", []byte(v))
}

// AcceptorID identifies one acceptor, as reported in PromiseAck/AcceptedAck
// messages. The proposer never validates these beyond deduplicating them
// within a quorum; acceptor identity/membership management lives in
// internal/config.
type AcceptorID int
