package config

import (
	"strings"
	"testing"
)

const sample = `
# three acceptors, two proposers
p 1 127.0.0.1 8001
p 2 127.0.0.1 8002
a 1 127.0.0.1 9001
a 2 127.0.0.1 9002
a 3 127.0.0.1 9003
`

func TestParse(t *testing.T) {
	m, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m.Proposers) != 2 {
		t.Fatalf("len(Proposers) = %d, want 2", len(m.Proposers))
	}
	if len(m.Acceptors) != 3 {
		t.Fatalf("len(Acceptors) = %d, want 3", len(m.Acceptors))
	}
	if m.Acceptors[0].Addr() != "127.0.0.1:9001" {
		t.Fatalf("Addr() = %q, want 127.0.0.1:9001", m.Acceptors[0].Addr())
	}
	if q := m.Quorum(); q != 2 {
		t.Fatalf("Quorum() = %d, want 2", q)
	}
}

func TestParseRejectsMalformedLines(t *testing.T) {
	cases := []string{
		"p 1 127.0.0.1\n",
		"x 1 127.0.0.1 8001\n",
		"p notanid 127.0.0.1 8001\n",
		"p 1 127.0.0.1 notaport\n",
	}
	for _, c := range cases {
		if _, err := Parse(strings.NewReader(c)); err == nil {
			t.Fatalf("Parse(%q) succeeded, want error", c)
		}
	}
}

func TestParseIgnoresBlankLinesAndComments(t *testing.T) {
	m, err := Parse(strings.NewReader("\n# comment\n\np 1 h 1\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m.Proposers) != 1 {
		t.Fatalf("len(Proposers) = %d, want 1", len(m.Proposers))
	}
}
