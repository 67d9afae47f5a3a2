package paxos

import "github.com/go-kit/kit/log"

// DebugLogFunc mirrors the zero-cost debug-logging toggle used throughout
// the rest of this module's ambient stack: left at its default no-op, call
// sites that pass through DebugLog cost nothing beyond the call itself.
// Set DebugLog to a function that actually calls logger.Log to get the
// same per-message tracing the original C source produced via its
// LOG(DBG, ...) macro.
type DebugLogFunc func(logger log.Logger, keyvals ...interface{})

// DebugLog is invoked for every stale-message drop, preemption and
// closure decision the proposer makes. Swap it out (not concurrency-safe
// to do so after Proposers are constructed) to enable tracing.
var DebugLog DebugLogFunc = func(log.Logger, ...interface{}) {}
