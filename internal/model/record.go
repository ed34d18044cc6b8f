package model

// MaxTextBytes is the hard cap on normalized submission text. The cut is a
// plain byte slice, so a multi-byte rune straddling the boundary is split;
// downstream tokenization tolerates the dangling bytes.
const MaxTextBytes = 8000

// SubmissionRecord is the canonical, sink-agnostic shape of one ingested
// submission. The id doubles as the dedup key and the transport message key.
type SubmissionRecord struct {
	ID        string `json:"id" avro:"id"`
	Text      string `json:"text" avro:"text"`
	Timestamp int64  `json:"timestamp" avro:"timestamp"` // milliseconds since epoch
	Source    string `json:"source" avro:"source"`
	Lang      string `json:"lang" avro:"lang"`
}

// Truncate enforces MaxTextBytes on a text value.
func Truncate(text string) string {
	if len(text) > MaxTextBytes {
		return text[:MaxTextBytes]
	}
	return text
}
