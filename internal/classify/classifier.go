// Package classify turns raw stern output lines into typed records.
//
// A line is first parsed as the stern JSON envelope (message, nodeName,
// namespace, podName, containerName). The envelope's message is then
// inspected: a leading timestamp is split off, and when the remainder is a
// JSON object it is classified by shape. Precedence is fixed and total:
// exception beats proxy beats timestamped beats plain object. Lines that are
// not a valid envelope classify as invalid and keep their raw text.
package classify

import (
	"encoding/json"
	"regexp"
	"strings"

	"sternmux/internal/mux"
)

// Full RFC 3339 style timestamp with zone offset, e.g.
// "2021-08-26T21:52:09+02:00 message".
const fullTimestampPattern = `^(?P<timestamp>\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d{1,9})?(?:Z|[+-]\d{2}:\d{2})) ?(?P<message>(?s).*)$`

// Short stern timestamp, e.g. "08-26 22:08:51 message".
const shortTimestampPattern = `^(?P<timestamp>\d{2}-\d{2} \d{2}:\d{2}:\d{2}) ?(?P<message>(?s).*)$`

// proxyFields is the envoy access-log field set that identifies a proxy
// record. All of them must be present.
var proxyFields = []string{
	"downstream_local_address",
	"method",
	"path",
	"protocol",
	"response_code",
	"bytes_sent",
	"bytes_received",
	"duration",
	"upstream_service_time",
}

// timestampKeys are the inner-object fields treated as timestamp-like.
var timestampKeys = []string{"ts", "timestamp", "time", "@timestamp"}

// Classifier detects the shape of raw lines. Safe for reuse across lines;
// the compiled patterns are immutable.
type Classifier struct {
	fullTimestamp  *regexp.Regexp
	shortTimestamp *regexp.Regexp
}

// New compiles the timestamp patterns and returns a Classifier.
func New() *Classifier {
	return &Classifier{
		fullTimestamp:  regexp.MustCompile(fullTimestampPattern),
		shortTimestamp: regexp.MustCompile(shortTimestampPattern),
	}
}

// Classify inspects one raw line and produces a typed record.
func (c *Classifier) Classify(line mux.RawLine) Record {
	rec := Record{
		Kind:     KindInvalid,
		Envelope: Envelope{Context: line.Context},
		Raw:      line.Text,
	}

	envelope, ok := parseEnvelope(line.Text)
	if !ok {
		return rec
	}

	rec.Node = envelope.node
	rec.Namespace = envelope.namespace
	rec.Pod = envelope.pod
	rec.Container = envelope.container

	message := envelope.message
	if ts, rest, found := c.splitTimestamp(message); found {
		rec.Timestamp = ts
		message = rest
	}

	fields, isObject := parseObject(message)
	if !isObject {
		rec.Kind = KindPlain
		rec.Message = message
		return rec
	}

	rec.Fields = fields
	rec.RequestID = stringField(fields, "request_id")

	switch {
	case hasField(fields, "exc_info") && hasField(fields, "message"):
		rec.Kind = KindException
		rec.Message = stringField(fields, "message")
		rec.ExcInfo = stringField(fields, "exc_info")
	case hasProxyShape(fields):
		rec.Kind = KindProxy
	default:
		// Message-bearing objects render as their message text; a
		// timestamp-like field upgrades the record to timestamped either way.
		rec.Kind = KindObject
		rec.Message = firstStringField(fields, "message", "msg")
		if key, value := timestampField(fields); key != "" {
			rec.Kind = KindTimestamped
			if rec.Timestamp == "" {
				rec.Timestamp = value
			}
		}
	}

	return rec
}

// splitTimestamp strips a recognized leading timestamp from the message.
func (c *Classifier) splitTimestamp(message string) (timestamp, rest string, found bool) {
	for _, re := range []*regexp.Regexp{c.fullTimestamp, c.shortTimestamp} {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
	}
	return "", message, false
}

type sternEnvelope struct {
	message   string
	node      string
	namespace string
	pod       string
	container string
}

// parseEnvelope decodes the stern --output json wrapper. Every field must be
// present and string-valued for the line to count as a valid envelope.
func parseEnvelope(text string) (sternEnvelope, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return sternEnvelope{}, false
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return sternEnvelope{}, false
	}

	env := sternEnvelope{}
	for _, want := range []struct {
		key string
		dst *string
	}{
		{"message", &env.message},
		{"nodeName", &env.node},
		{"namespace", &env.namespace},
		{"podName", &env.pod},
		{"containerName", &env.container},
	} {
		value, ok := raw[want.key].(string)
		if !ok {
			return sternEnvelope{}, false
		}
		*want.dst = strings.TrimSpace(value)
	}
	return env, true
}

// parseObject decodes a message that is itself a JSON object.
func parseObject(message string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(message)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return nil, false
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func hasField(fields map[string]any, key string) bool {
	_, ok := fields[key]
	return ok
}

func hasProxyShape(fields map[string]any) bool {
	for _, key := range proxyFields {
		if !hasField(fields, key) {
			return false
		}
	}
	return true
}

func stringField(fields map[string]any, key string) string {
	value, ok := fields[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func firstStringField(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		if hasField(fields, key) {
			return stringField(fields, key)
		}
	}
	return ""
}

// timestampField returns the first timestamp-like field with a string value.
func timestampField(fields map[string]any) (key, value string) {
	for _, candidate := range timestampKeys {
		if v, ok := fields[candidate].(string); ok && strings.TrimSpace(v) != "" {
			return candidate, strings.TrimSpace(v)
		}
	}
	return "", ""
}
