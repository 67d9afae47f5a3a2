package transport

import "testing"

func TestMemoryTransportSendReceive(t *testing.T) {
	net := NewNetwork()
	a := net.Join("a")
	b := net.Join("b")
	defer a.Close()
	defer b.Close()

	if err := a.Send("b", Envelope{From: "a", Type: MessageTypePrepare}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	env, err := b.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if env.From != "a" || env.Type != MessageTypePrepare {
		t.Fatalf("Receive() = %+v, want From=a Type=PREPARE", env)
	}
}

func TestMemoryTransportSendToUnknownNode(t *testing.T) {
	net := NewNetwork()
	a := net.Join("a")
	defer a.Close()

	if err := a.Send("ghost", Envelope{From: "a"}); err != ErrUnknownNode {
		t.Fatalf("Send to unknown node = %v, want ErrUnknownNode", err)
	}
}

func TestMemoryTransportBroadcastExcludesSelf(t *testing.T) {
	net := NewNetwork()
	a := net.Join("a")
	b := net.Join("b")
	c := net.Join("c")
	defer a.Close()
	defer b.Close()
	defer c.Close()

	if err := a.Broadcast(Envelope{From: "a", Type: MessageTypeAccept}); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	for _, n := range []*MemoryTransport{b, c} {
		env, err := n.Receive()
		if err != nil || env.From != "a" {
			t.Fatalf("Receive() = %+v, %v", env, err)
		}
	}

	select {
	case env := <-a.inbox:
		t.Fatalf("broadcaster received its own message: %+v", env)
	default:
	}
}

func TestMemoryTransportCloseUnblocksReceive(t *testing.T) {
	net := NewNetwork()
	a := net.Join("a")

	done := make(chan error, 1)
	go func() {
		_, err := a.Receive()
		done <- err
	}()

	a.Close()
	if err := <-done; err != ErrClosed {
		t.Fatalf("Receive() after Close = %v, want ErrClosed", err)
	}
}
