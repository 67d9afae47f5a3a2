package paxos

// nextBallot generates the next ballot for an instance. Given the
// current ballot (0 if none issued yet for this instance), it returns
// maxProposers + proposerID when current is 0, and current + maxProposers
// otherwise; for a current ballot that this proposer issued, that is the
// next ballot congruent to proposerID modulo maxProposers. Because every correctly configured
// proposer in the system picks a distinct id in [1, maxProposers), no two
// proposers can ever produce the same ballot, and no coordination between
// them is required to guarantee that.
func nextBallot(current Ballot, proposerID int, maxProposers int) Ballot {
	if current > 0 {
		return current + Ballot(maxProposers)
	}
	return Ballot(maxProposers + proposerID)
}
