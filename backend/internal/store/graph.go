package store

import "strings"

// Node levels, largest to smallest
const (
	LevelTopic       = "topic"
	LevelSubtopic    = "subtopic"
	LevelSubsubtopic = "subsubtopic"
)

// Link types
const (
	LinkHierarchy    = "hierarchy"
	LinkCooccurrence = "cooccurrence"
)

// GraphNode is one renderable node of the topic flow visualization
type GraphNode struct {
	ID                 string   `json:"id"`
	Label              string   `json:"label"`
	Level              string   `json:"level"`
	Size               float64  `json:"size"`
	Group              string   `json:"group"`
	Frequency          int      `json:"frequency"`
	Confidence         float64  `json:"confidence"`
	Keywords           []string `json:"keywords,omitempty"`
	FirstSeenMessageID uint     `json:"first_seen_message_id"`
	LastSeenMessageID  uint     `json:"last_seen_message_id"`
}

// GraphLink is one edge; hierarchy links connect levels, cooccurrence links
// connect subsubtopic nodes seen in overlapping message windows
type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Weight int    `json:"weight"`
	Type   string `json:"type"`
}

// Graph is the D3-compatible shape returned to visualization consumers
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}

// BuildGraph converts stored triples into graph format. It is a pure
// function of its input: the same triple set always yields the same node
// ids, link set and sizes. Node ids are derived from normalized labels, so
// triples sharing a topic label share one topic node.
func BuildGraph(triples []TopicTriple) Graph {
	graph := Graph{
		Nodes: []GraphNode{},
		Links: []GraphLink{},
	}
	if len(triples) == 0 {
		return graph
	}

	nodeIDs := make(map[string]bool)

	for _, t := range triples {
		// Size grows with accumulated frequency and confidence; the
		// per-level offset keeps the hierarchy visually legible even
		// when a subsubtopic outweighs its topic in raw frequency.
		baseSize := float64(t.Frequency) * t.Confidence * 10

		topicNodeID := normalizeNodeID(t.TopicLabel)
		subtopicNodeID := topicNodeID + "::" + normalizeNodeID(t.SubtopicLabel)
		subsubtopicNodeID := t.TopicID

		if !nodeIDs[topicNodeID] {
			graph.Nodes = append(graph.Nodes, GraphNode{
				ID:                 topicNodeID,
				Label:              t.TopicLabel,
				Level:              LevelTopic,
				Size:               baseSize + 20,
				Group:              t.TopicLabel,
				Frequency:          t.Frequency,
				Confidence:         t.Confidence,
				FirstSeenMessageID: t.FirstSeenMessageID,
				LastSeenMessageID:  t.LastSeenMessageID,
			})
			nodeIDs[topicNodeID] = true
		}

		if !nodeIDs[subtopicNodeID] {
			graph.Nodes = append(graph.Nodes, GraphNode{
				ID:                 subtopicNodeID,
				Label:              t.SubtopicLabel,
				Level:              LevelSubtopic,
				Size:               baseSize + 10,
				Group:              t.TopicLabel,
				Frequency:          t.Frequency,
				Confidence:         t.Confidence,
				FirstSeenMessageID: t.FirstSeenMessageID,
				LastSeenMessageID:  t.LastSeenMessageID,
			})
			nodeIDs[subtopicNodeID] = true
		}

		if !nodeIDs[subsubtopicNodeID] {
			graph.Nodes = append(graph.Nodes, GraphNode{
				ID:                 subsubtopicNodeID,
				Label:              t.SubsubtopicLabel,
				Level:              LevelSubsubtopic,
				Size:               baseSize,
				Group:              t.TopicLabel,
				Frequency:          t.Frequency,
				Confidence:         t.Confidence,
				Keywords:           t.KeywordList(),
				FirstSeenMessageID: t.FirstSeenMessageID,
				LastSeenMessageID:  t.LastSeenMessageID,
			})
			nodeIDs[subsubtopicNodeID] = true
		}

		graph.Links = append(graph.Links,
			GraphLink{Source: topicNodeID, Target: subtopicNodeID, Weight: t.Frequency, Type: LinkHierarchy},
			GraphLink{Source: subtopicNodeID, Target: subsubtopicNodeID, Weight: t.Frequency, Type: LinkHierarchy},
		)
	}

	// Co-occurrence edges are symmetric; emit each pair once, canonicalized
	// so the lexicographically smaller id is always the source.
	for _, t := range triples {
		for _, coID := range t.CoOccurrenceList() {
			if !nodeIDs[t.TopicID] || !nodeIDs[coID] {
				continue
			}
			if t.TopicID < coID {
				graph.Links = append(graph.Links, GraphLink{
					Source: t.TopicID,
					Target: coID,
					Weight: 1,
					Type:   LinkCooccurrence,
				})
			}
		}
	}

	return graph
}

func normalizeNodeID(label string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), " ", "-")
}
