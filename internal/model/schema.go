package model

import (
	"fmt"
	"os"

	"github.com/hamba/avro/v2"
)

// rawSocialPostSchema mirrors schemas/raw_social_post.avsc. The embedded copy
// keeps the binaries runnable without the schema checked out next to them;
// SCHEMA_FILE overrides it.
const rawSocialPostSchema = `{
  "type": "record",
  "name": "RawSocialPost",
  "namespace": "com.pulse.ingest",
  "fields": [
    {"name": "id", "type": "string"},
    {"name": "text", "type": "string"},
    {"name": "timestamp", "type": "long"},
    {"name": "source", "type": "string"},
    {"name": "lang", "type": "string"}
  ]
}`

// LoadSchema returns the Avro schema text and its parsed form. When path is
// empty the embedded schema is used. An unreadable or unparseable schema file
// is a startup failure for the Kafka sink.
func LoadSchema(path string) (string, avro.Schema, error) {
	text := rawSocialPostSchema
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", nil, fmt.Errorf("read schema file %s: %w", path, err)
		}
		text = string(b)
	}

	schema, err := avro.Parse(text)
	if err != nil {
		return "", nil, fmt.Errorf("parse avro schema: %w", err)
	}
	return text, schema, nil
}
