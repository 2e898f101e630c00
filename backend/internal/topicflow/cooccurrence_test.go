package topicflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeCoOccurrences_SharedMessages(t *testing.T) {
	candidates := []Candidate{
		{TopicLabel: "A", SourceMessages: []uint{1, 2}},
		{TopicLabel: "B", SourceMessages: []uint{2, 3}},
		{TopicLabel: "C", SourceMessages: []uint{9}},
	}

	co := ComputeCoOccurrences(candidates)

	assert.Equal(t, []int{1}, co[0])
	assert.Equal(t, []int{0}, co[1], "relation must be symmetric")
	assert.Empty(t, co[2], "no shared messages, no co-occurrence")
}

func TestComputeCoOccurrences_NoSelfReference(t *testing.T) {
	candidates := []Candidate{
		{TopicLabel: "A", SourceMessages: []uint{1, 1, 2}},
	}

	co := ComputeCoOccurrences(candidates)
	assert.Empty(t, co[0])
}

func TestComputeCoOccurrences_DeduplicatesPairs(t *testing.T) {
	// Two shared messages still yield the peer exactly once
	candidates := []Candidate{
		{TopicLabel: "A", SourceMessages: []uint{1, 2}},
		{TopicLabel: "B", SourceMessages: []uint{1, 2}},
	}

	co := ComputeCoOccurrences(candidates)
	assert.Equal(t, []int{1}, co[0])
	assert.Equal(t, []int{0}, co[1])
}
