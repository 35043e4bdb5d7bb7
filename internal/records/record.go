// Package records parses conversation records and groups them by thread.
package records

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrInvalidJSON is returned when the input is not valid JSON
	ErrInvalidJSON = errors.New("invalid JSON")

	// ErrNotAList is returned when the JSON document is not an array of records
	ErrNotAList = errors.New("JSON file should contain a list of email messages")
)

// ThreadRecord is one message of a conversation.
// GroupKey is nil when the record carries no thread identifier.
type ThreadRecord struct {
	GroupKey *string
	Body     string
}

// NewRecord creates a record that belongs to thread key
func NewRecord(key, body string) ThreadRecord {
	return ThreadRecord{GroupKey: &key, Body: body}
}

// UnkeyedRecord creates a record without a thread identifier
func UnkeyedRecord(body string) ThreadRecord {
	return ThreadRecord{Body: body}
}

// GroupedSummary is the summary produced for one thread
type GroupedSummary struct {
	GroupKey string `json:"thread_id"`
	Body     string `json:"body"`
}

// ParseRecords reads a JSON array of objects with optional "thread_id" and "body" fields.
// A thread_id of null or a missing field leaves the record unkeyed. Numeric ids are
// written in their shortest decimal form, so 1, 1.0 and "1" name the same thread.
// Non-string bodies read as "".
func ParseRecords(data []byte) ([]ThreadRecord, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}

	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, ErrNotAList
	}

	records := make([]ThreadRecord, 0, len(root.Array()))
	root.ForEach(func(_, item gjson.Result) bool {
		records = append(records, recordFrom(item))
		return true
	})
	return records, nil
}

func recordFrom(item gjson.Result) ThreadRecord {
	var record ThreadRecord

	if item.IsObject() {
		if body := item.Get("body"); body.Type == gjson.String {
			record.Body = body.Str
		}

		id := item.Get("thread_id")
		switch {
		case !id.Exists() || id.Type == gjson.Null:
		case id.Type == gjson.String:
			key := id.Str
			record.GroupKey = &key
		case id.Type == gjson.Number:
			key := numberKey(id)
			record.GroupKey = &key
		default:
			key := strings.TrimSpace(id.Raw)
			record.GroupKey = &key
		}
	}

	return record
}

func numberKey(id gjson.Result) string {
	if math.IsInf(id.Num, 0) || math.IsNaN(id.Num) {
		return strings.TrimSpace(id.Raw)
	}
	return strconv.FormatFloat(id.Num, 'f', -1, 64)
}
