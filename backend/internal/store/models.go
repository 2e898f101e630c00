package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// User is a registered account. Message history and topic triples are
// partitioned by user id.
type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }

// Message is one chat turn. The autoincrement id doubles as the monotonic
// message id the topic flow cursor is derived from.
type Message struct {
	ID              uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          uint           `gorm:"index;not null" json:"user_id"`
	Role            string         `gorm:"not null" json:"role"`
	Content         string         `gorm:"type:text;not null" json:"content"`
	ConfidenceLabel *string        `json:"confidence_label,omitempty"`
	ConfidenceScore *float64       `json:"confidence_score,omitempty"`
	Reasoning       string         `gorm:"type:text" json:"reasoning,omitempty"`
	TrustAnalysis   datatypes.JSON `json:"trust_analysis,omitempty"`
	Timestamp       time.Time      `gorm:"autoCreateTime" json:"timestamp"`
}

func (Message) TableName() string { return "messages" }

// TopicTriple is one row of the topic flow table: a (topic, subtopic,
// subsubtopic) label tuple plus accumulated metadata. TopicID is the
// deterministic identity string; two extractions that normalize to the same
// identity always land on the same row.
type TopicTriple struct {
	TopicID            string         `gorm:"primaryKey" json:"topic_id"`
	UserID             uint           `gorm:"index;not null" json:"user_id"`
	TopicLabel         string         `gorm:"not null;index" json:"topic_label"`
	SubtopicLabel      string         `gorm:"not null;default:''" json:"subtopic_label"`
	SubsubtopicLabel   string         `gorm:"not null;default:''" json:"subsubtopic_label"`
	FirstSeenMessageID uint           `json:"first_seen_message_id"`
	LastSeenMessageID  uint           `gorm:"index" json:"last_seen_message_id"`
	Frequency          int            `gorm:"not null;default:1" json:"frequency"`
	Confidence         float64        `gorm:"not null;default:0.5" json:"confidence"`
	Keywords           datatypes.JSON `json:"keywords"`
	CoOccurrence       datatypes.JSON `json:"co_occurrence"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `gorm:"index" json:"updated_at"`
}

func (TopicTriple) TableName() string { return "topic_flow" }

// KeywordList decodes the keywords column, treating null/invalid as empty
func (t *TopicTriple) KeywordList() []string {
	return decodeStringList(t.Keywords)
}

// CoOccurrenceList decodes the co_occurrence column
func (t *TopicTriple) CoOccurrenceList() []string {
	return decodeStringList(t.CoOccurrence)
}

func decodeStringList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

func encodeStringList(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	raw, _ := json.Marshal(values)
	return raw
}
