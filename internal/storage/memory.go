package storage

import (
	"sync"

	"github.com/senutpal/quorum/internal/paxos"
)

type instanceState struct {
	promised    paxos.Ballot
	acceptedAt  paxos.Ballot
	acceptedVal paxos.Value
}

// MemoryStorage is a non-durable Storage, for tests and the demo binary.
// Data lives only in process memory and is lost on restart, which is
// exactly why it must never back a real acceptor: an acceptor's
// durability guarantee depends on Save* surviving a crash.
type MemoryStorage struct {
	mu    sync.RWMutex
	state map[paxos.IID]*instanceState
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{state: make(map[paxos.IID]*instanceState)}
}

func (m *MemoryStorage) entry(iid paxos.IID) *instanceState {
	st, ok := m.state[iid]
	if !ok {
		st = &instanceState{}
		m.state[iid] = st
	}
	return st
}

func (m *MemoryStorage) SavePromised(iid paxos.IID, ballot paxos.Ballot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(iid).promised = ballot
	return nil
}

func (m *MemoryStorage) LoadPromised(iid paxos.IID) (paxos.Ballot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.state[iid]; ok {
		return st.promised, nil
	}
	return 0, nil
}

func (m *MemoryStorage) SaveAccepted(iid paxos.IID, ballot paxos.Ballot, value paxos.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.entry(iid)
	st.acceptedAt = ballot
	st.acceptedVal = append(paxos.Value(nil), value...)
	return nil
}

func (m *MemoryStorage) LoadAccepted(iid paxos.IID) (paxos.Ballot, paxos.Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.state[iid]
	if !ok {
		return 0, nil, nil
	}
	return st.acceptedAt, append(paxos.Value(nil), st.acceptedVal...), nil
}

func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = make(map[paxos.IID]*instanceState)
	return nil
}
