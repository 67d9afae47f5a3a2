// Package storage abstracts the durable state an acceptor must keep.
// Acceptors have to survive crashes without forgetting a promise or an
// accepted value; by coding to an interface here, the paxos package never
// knows whether that survival is backed by memory, a file, or a database.
package storage

import "github.com/senutpal/quorum/internal/paxos"

// Storage persists one acceptor's per-instance promise/accept state.
// Every method is keyed by IID because a proposer may have many
// instances open at once in a pipelined window; an acceptor backs all
// of them with the same Storage.
//
// Implementations MUST make Save* durable (fsync'd, in a production
// backend) before returning: an acceptor replies to a PREPARE or ACCEPT
// only after its Save call returns, so a crash between Save and reply
// must never lose the write.
type Storage interface {
	// SavePromised durably records that iid has now promised ballot.
	SavePromised(iid paxos.IID, ballot paxos.Ballot) error
	// LoadPromised returns the highest ballot promised for iid, or zero
	// if iid has never received a PREPARE.
	LoadPromised(iid paxos.IID) (paxos.Ballot, error)
	// SaveAccepted durably records that iid accepted value at ballot.
	SaveAccepted(iid paxos.IID, ballot paxos.Ballot, value paxos.Value) error
	// LoadAccepted returns the (ballot, value) iid most recently
	// accepted, or (0, nil) if iid has never accepted anything.
	LoadAccepted(iid paxos.IID) (paxos.Ballot, paxos.Value, error)
	// Close releases any resources the implementation holds.
	Close() error
}
