// Command demo runs an in-process Paxos cluster from a membership file
// and proposes a single value through it, printing what every learner
// ends up agreeing on.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/senutpal/quorum/internal/config"
	"github.com/senutpal/quorum/internal/node"
	"github.com/senutpal/quorum/internal/paxos"
	"github.com/senutpal/quorum/internal/storage"
	"github.com/senutpal/quorum/internal/transport"
)

func main() {
	var (
		configPath      = flag.String("config", "", "path to a membership file (required)")
		value           = flag.String("value", "hello, paxos!", "value for the first proposer listed in the membership file to propose")
		instanceTimeout = flag.Duration("instance-timeout", 500*time.Millisecond, "how long an instance waits before a proposer re-runs phase 1")
		preexecWindow   = flag.Int("preexec-window", 4, "max concurrently PREPARING instances per proposer")
		maxProposers    = flag.Int("max-proposers", 10, "B: fixed upper bound on proposer count (ballot scheme modulus)")
		verbose         = flag.Bool("v", false, "enable debug logging of protocol events")
	)
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "demo: -config is required")
		flag.Usage()
		os.Exit(2)
	}

	membership, err := config.Read(*configPath)
	if err != nil {
		log.Fatalf("demo: %v", err)
	}
	if len(membership.Acceptors) == 0 {
		log.Fatalf("demo: membership file names no acceptors")
	}

	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)
	if *verbose {
		paxos.DebugLog = func(l kitlog.Logger, keyvals ...interface{}) {
			l.Log(keyvals...)
		}
	}

	quorum := membership.Quorum()
	network := transport.NewNetwork()
	nodes := make(map[transport.NodeID]*node.Node, len(membership.Acceptors)+len(membership.Proposers))

	registerMetrics := func(id string) *paxos.Metrics {
		return &paxos.Metrics{
			InstancesOpen: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "paxos", Subsystem: "proposer", Name: "instances_open", ConstLabels: prometheus.Labels{"node": id},
			}),
			QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "paxos", Subsystem: "proposer", Name: "queue_depth", ConstLabels: prometheus.Labels{"node": id},
			}),
			Preemptions: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "paxos", Subsystem: "proposer", Name: "preemptions_total", ConstLabels: prometheus.Labels{"node": id},
			}),
			InstancesClosed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "paxos", Subsystem: "proposer", Name: "instances_closed_total", ConstLabels: prometheus.Labels{"node": id},
			}),
		}
	}

	for _, a := range membership.Acceptors {
		id := transport.NodeID(fmt.Sprintf("acceptor-%d", a.ID))
		t := network.Join(id)
		n, err := node.NewNode(node.Config{
			ID:              id,
			AcceptorID:      paxos.AcceptorID(a.ID),
			MaxProposers:    *maxProposers,
			Quorum:          quorum,
			InstanceTimeout: *instanceTimeout,
			PreexecWindow:   *preexecWindow,
		}, t, storage.NewMemoryStorage(), logger, nil)
		if err != nil {
			log.Fatalf("demo: acceptor %d: %v", a.ID, err)
		}
		nodes[id] = n
	}

	for _, p := range membership.Proposers {
		id := transport.NodeID(fmt.Sprintf("proposer-%d", p.ID))
		t := network.Join(id)
		n, err := node.NewNode(node.Config{
			ID:              id,
			AcceptorID:      0,
			ProposerID:      p.ID,
			MaxProposers:    *maxProposers,
			Quorum:          quorum,
			InstanceTimeout: *instanceTimeout,
			PreexecWindow:   *preexecWindow,
		}, t, storage.NewMemoryStorage(), logger, registerMetrics(string(id)))
		if err != nil {
			log.Fatalf("demo: proposer %d: %v", p.ID, err)
		}
		nodes[id] = n
	}

	for _, n := range nodes {
		n.Start()
	}
	defer func() {
		for _, n := range nodes {
			n.Stop()
		}
	}()

	var proposer *node.Node
	for _, p := range membership.Proposers {
		proposer = nodes[transport.NodeID(fmt.Sprintf("proposer-%d", p.ID))]
		break
	}
	if proposer == nil {
		log.Fatalf("demo: membership file names no proposers")
	}

	fmt.Printf("proposing %q through %s\n", *value, proposer.ID())
	if err := proposer.Propose([]byte(*value)); err != nil {
		log.Fatalf("demo: propose: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	var chosen paxos.Value
	for time.Now().Before(deadline) {
		if v, ok := proposer.GetChosenValue(1); ok {
			chosen = v
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if chosen == nil {
		fmt.Println("no value chosen within the deadline")
		os.Exit(1)
	}
	fmt.Printf("chosen: %s\n", chosen)

	for id, n := range nodes {
		v, ok := n.GetChosenValue(1)
		fmt.Printf("%s learned: %q (ok=%v)\n", id, v, ok)
	}
}
