// Package config reads cluster membership files in a plain text format:
// one line per participant, "p <id> <address> <port>" for a proposer or
// "a <id> <address> <port>" for an acceptor.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Peer is one cluster participant as named in a membership file.
type Peer struct {
	ID      int
	Address string
	Port    int
}

// Addr returns "address:port", the form a net.Dial-based transport
// would use to reach this peer.
func (p Peer) Addr() string {
	return fmt.Sprintf("%s:%d", p.Address, p.Port)
}

// Membership is the parsed contents of a configuration file: every
// proposer and acceptor in the cluster, in file order.
type Membership struct {
	Proposers []Peer
	Acceptors []Peer
}

// Quorum returns floor(len(Acceptors)/2)+1, the default acceptor
// majority size for this membership.
func (m Membership) Quorum() int {
	return len(m.Acceptors)/2 + 1
}

// Read parses the membership file at path.
func Read(path string) (*Membership, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a membership file from r. Exported separately from Read
// so tests can feed a strings.Reader without touching the filesystem.
func Parse(r io.Reader) (*Membership, error) {
	m := &Membership{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return nil, fmt.Errorf("config: line %d: expected 4 fields, got %d", lineNo, len(fields))
		}

		kind := fields[0]
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("config: line %d: invalid id %q: %w", lineNo, fields[1], err)
		}
		port, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("config: line %d: invalid port %q: %w", lineNo, fields[3], err)
		}
		peer := Peer{ID: id, Address: fields[2], Port: port}

		switch kind {
		case "p":
			m.Proposers = append(m.Proposers, peer)
		case "a":
			m.Acceptors = append(m.Acceptors, peer)
		default:
			return nil, fmt.Errorf("config: line %d: unknown participant type %q (want \"p\" or \"a\")", lineNo, kind)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return m, nil
}
