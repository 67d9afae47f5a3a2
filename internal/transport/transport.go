// Package transport abstracts message delivery between paxos
// participants. Paxos itself assumes nothing about the network beyond
// "messages may be delayed, lost or reordered, but never corrupted or
// duplicated undetectably"; this package is where that assumption gets
// a concrete Go shape, independent of whether delivery happens over
// channels in one process or a socket across a network.
package transport

import "errors"

// NodeID names one participant (proposer or acceptor) in the transport's
// address space. cmd/demo derives it from a config.Membership peer's
// numeric ID, e.g. "acceptor-1" or "proposer-1".
type NodeID string

// MessageType tags the payload carried in an Envelope so a receiver can
// type-switch without reflecting on the payload itself.
type MessageType int

const (
	MessageTypePrepare MessageType = iota
	MessageTypePromise
	MessageTypeAccept
	MessageTypeAccepted
	MessageTypeLearn
)

func (t MessageType) String() string {
	switch t {
	case MessageTypePrepare:
		return "PREPARE"
	case MessageTypePromise:
		return "PROMISE"
	case MessageTypeAccept:
		return "ACCEPT"
	case MessageTypeAccepted:
		return "ACCEPTED"
	case MessageTypeLearn:
		return "LEARN"
	default:
		return "UNKNOWN"
	}
}

// Envelope wraps one paxos message (a paxos.PrepareRequest,
// paxos.PromiseAck, paxos.AcceptRequest, paxos.AcceptedAck or
// paxos.LearnNotice) with routing metadata. Payload is left as
// interface{} rather than serialized bytes: messages here never cross a
// process boundary that would require encoding.
type Envelope struct {
	From    NodeID
	Type    MessageType
	Payload interface{}
}

// ErrUnknownNode is returned by Send for a destination that isn't
// registered with this transport. Broadcast only targets registered
// peers and does not return it.
var ErrUnknownNode = errors.New("transport: unknown destination node")

// ErrClosed is returned by Send/Broadcast/Receive once Close has been
// called on this transport.
var ErrClosed = errors.New("transport: closed")

// Transport delivers Envelopes between nodes. Send and Broadcast are
// fire-and-forget: neither blocks waiting for the destination to
// process the message, matching Paxos's asynchronous-network model.
type Transport interface {
	Send(to NodeID, env Envelope) error
	Broadcast(env Envelope) error
	Receive() (Envelope, error)
	Close() error
}
