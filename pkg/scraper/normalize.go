package scraper

import (
	"encoding/json"
	"strings"

	"github.com/graphenedata/ledger-indexer/pkg/ledger"
)

// Payload fields that commonly carry JSON documents serialized as strings.
// They are expanded into real documents before storage so they stay
// queryable.
var embeddedJSONFields = []string{"json", "json_metadata", "posting_json_metadata"}

// keySanitizer drops characters that are illegal as storage keys.
var keySanitizer = strings.NewReplacer(".", "", "$", "")

// normalizeOperation prepares a raw feed operation for storage: embedded
// JSON strings are expanded and keys sanitized.
func normalizeOperation(op *ledger.Operation) map[string]any {
	return sanitizeKeys(expandEmbeddedJSON(op.Payload))
}

// normalizeEvent prepares an account-history event for storage. Full
// backfill drops the large free-text body field, since the raw operation
// feed already stores it.
func normalizeEvent(ev *ledger.AccountEvent, dropBody bool) map[string]any {
	payload := sanitizeKeys(expandEmbeddedJSON(ev.Payload))
	if dropBody {
		delete(payload, "body")
	}

	return payload
}

// sanitizeMetadata parses a free-form profile blob into a document with
// sanitized keys. Malformed blobs yield an empty document rather than an
// error; one bad profile must not fail an account update.
func sanitizeMetadata(blob string) map[string]any {
	if blob == "" {
		return map[string]any{}
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(blob), &parsed); err != nil {
		return map[string]any{}
	}

	return sanitizeKeys(parsed)
}

// expandEmbeddedJSON returns a copy of payload with string-serialized JSON
// fields parsed into documents. Unparseable values are kept verbatim.
func expandEmbeddedJSON(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		out[key] = value
	}

	for _, field := range embeddedJSONFields {
		raw, ok := out[field].(string)
		if !ok || raw == "" {
			continue
		}

		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			out[field] = parsed
		}
	}

	return out
}

// sanitizeKeys rewrites all document keys, recursively, with illegal
// characters removed.
func sanitizeKeys(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for key, value := range doc {
		out[keySanitizer.Replace(key)] = sanitizeValue(value)
	}

	return out
}

func sanitizeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return sanitizeKeys(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return value
	}
}
