package storage

import (
	"testing"

	"github.com/senutpal/quorum/internal/paxos"
)

func TestMemoryStorageRoundTrip(t *testing.T) {
	s := NewMemoryStorage()

	if b, err := s.LoadPromised(1); err != nil || b != 0 {
		t.Fatalf("LoadPromised on untouched iid = (%d, %v), want (0, nil)", b, err)
	}

	if err := s.SavePromised(1, 11); err != nil {
		t.Fatalf("SavePromised: %v", err)
	}
	if b, _ := s.LoadPromised(1); b != 11 {
		t.Fatalf("LoadPromised(1) = %d, want 11", b)
	}

	if err := s.SaveAccepted(1, 11, paxos.Value("x")); err != nil {
		t.Fatalf("SaveAccepted: %v", err)
	}
	ballot, value, err := s.LoadAccepted(1)
	if err != nil || ballot != 11 || string(value) != "x" {
		t.Fatalf("LoadAccepted(1) = (%d, %q, %v), want (11, \"x\", nil)", ballot, value, err)
	}
}

func TestMemoryStorageInstancesAreIndependent(t *testing.T) {
	s := NewMemoryStorage()
	s.SavePromised(1, 11)
	s.SavePromised(2, 99)

	b1, _ := s.LoadPromised(1)
	b2, _ := s.LoadPromised(2)
	if b1 != 11 || b2 != 99 {
		t.Fatalf("per-IID state bled across instances: iid1=%d iid2=%d", b1, b2)
	}
}

func TestMemoryStorageDefensiveCopy(t *testing.T) {
	s := NewMemoryStorage()
	v := []byte("x")
	s.SaveAccepted(1, 1, paxos.Value(v))
	v[0] = 'z'

	_, stored, _ := s.LoadAccepted(1)
	if string(stored) != "x" {
		t.Fatalf("stored value mutated through caller's slice: got %q, want \"x\"", stored)
	}
}

func TestMemoryStorageClose(t *testing.T) {
	s := NewMemoryStorage()
	s.SavePromised(1, 11)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if b, _ := s.LoadPromised(1); b != 0 {
		t.Fatalf("state survived Close(): %d", b)
	}
}
