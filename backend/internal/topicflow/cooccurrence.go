package topicflow

// ComputeCoOccurrences maps each candidate index to the indexes of other
// candidates that share at least one source message with it. The relation
// is symmetric and reflexivity is excluded. Within one update call this is
// the "overlapping message window" from the graph's point of view; the
// store accumulates the resolved ids additively across calls.
func ComputeCoOccurrences(candidates []Candidate) map[int][]int {
	messageToCandidates := make(map[uint][]int)
	for i, c := range candidates {
		for _, msgID := range c.SourceMessages {
			messageToCandidates[msgID] = append(messageToCandidates[msgID], i)
		}
	}

	coOccur := make(map[int][]int, len(candidates))
	for i, c := range candidates {
		seen := make(map[int]bool)
		for _, msgID := range c.SourceMessages {
			for _, other := range messageToCandidates[msgID] {
				if other == i || seen[other] {
					continue
				}
				seen[other] = true
				coOccur[i] = append(coOccur[i], other)
			}
		}
	}

	return coOccur
}
