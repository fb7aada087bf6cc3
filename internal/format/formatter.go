// Package format renders classified records as display lines.
//
// The column layout is fixed regardless of configuration:
//
//	<context> <pod> <container> <timestamp>\t<message>
//
// Missing fields render as empty columns, never as an error. All
// configured transformations (timestamp fix-up, pretty-printing, cosmetic
// suffixes, container filtering) apply to the message portion only.
package format

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"sternmux/internal/classify"
	"sternmux/internal/config"
)

// Bracketed application log prefix, e.g.
// "20250902140313.122[ERR][service.views, function (file.py:618)][NULL]: ".
const bracketedTimestampPattern = `^\d{14}\.?\d{0,3}\[[A-Z]+\]\[.*?\]\[[A-Z]+\]:\s+`

// Spaced application log prefix, e.g. "2025-09-02 12:58:52.123 INFO ".
const spacedTimestampPattern = `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.?\d{0,3} [A-Z]+\s+`

// Disposition reports what happened to a record during formatting.
type Disposition int

const (
	// Rendered means a display line was produced.
	Rendered Disposition = iota
	// DroppedInvalid means an unclassifiable line was discarded because
	// skip-invalid-messages is on.
	DroppedInvalid
	// DroppedContainer means the record's container is excluded by the
	// include-containers filter.
	DroppedContainer
)

// Formatter applies the configured transformations to classified records.
// It holds no per-line state, so formatting the same record twice yields
// byte-identical output.
type Formatter struct {
	cfg *config.Config

	bracketedTimestamp *regexp.Regexp
	spacedTimestamp    *regexp.Regexp
}

// New constructs a Formatter bound to the run configuration.
func New(cfg *config.Config) *Formatter {
	return &Formatter{
		cfg:                cfg,
		bracketedTimestamp: regexp.MustCompile(bracketedTimestampPattern),
		spacedTimestamp:    regexp.MustCompile(spacedTimestampPattern),
	}
}

// Format produces the final display line for a record, or reports why the
// record was dropped.
func (f *Formatter) Format(rec classify.Record) (string, Disposition) {
	if rec.Kind == classify.KindInvalid {
		if f.cfg.Gather.SkipInvalid {
			return "", DroppedInvalid
		}
		body := f.transform(rec.Raw, "", f.cfg.Gather.PrettyPrint)
		return f.finish(prefix(rec) + body), Rendered
	}

	if !f.containerAllowed(rec.Container) {
		return "", DroppedContainer
	}

	var body string
	switch rec.Kind {
	case classify.KindException:
		body = f.exceptionBody(rec)
	case classify.KindProxy:
		body = f.proxyBody(rec)
	default:
		if rec.Message != "" || rec.Fields == nil {
			body = f.transform(rec.Message, rec.Timestamp, f.cfg.Gather.PrettyPrint)
		} else {
			body = f.fieldsBody(rec)
		}
	}

	return f.finish(prefix(rec) + body), Rendered
}

// containerAllowed applies the include-containers filter. An empty filter
// set keeps everything.
func (f *Formatter) containerAllowed(container string) bool {
	include := f.cfg.Gather.IncludeContainers
	if len(include) == 0 {
		return true
	}
	for _, name := range include {
		if name == container {
			return true
		}
	}
	return false
}

// prefix renders the fixed columns. Missing fields stay empty.
func prefix(rec classify.Record) string {
	return fmt.Sprintf("%s %s %s %s\t", rec.Context, rec.Pod, rec.Container, rec.Timestamp)
}

// transform applies fix-up, pretty-printing, and the trailing space to one
// message body.
func (f *Formatter) transform(message, timestamp string, pretty bool) string {
	if f.cfg.Gather.FixUpMessages {
		message = f.stripLeadingTimestamp(message, timestamp)
	}
	if pretty {
		message = f.prettyPrintObjects(message)
	}
	if f.cfg.Gather.SpaceAfterMessage {
		message = strings.TrimRight(message, " \t") + " "
	}
	return message
}

// stripLeadingTimestamp removes a redundant timestamp from the front of the
// body: first the exact timestamp already shown in the prefix column, then
// the recognized application log prefixes. Only one rule applies per line.
func (f *Formatter) stripLeadingTimestamp(message, timestamp string) string {
	if timestamp != "" && strings.HasPrefix(message, timestamp) {
		return strings.TrimSpace(strings.TrimPrefix(message, timestamp))
	}
	for _, re := range []*regexp.Regexp{f.bracketedTimestamp, f.spacedTimestamp} {
		if loc := re.FindStringIndex(message); loc != nil {
			return strings.TrimSpace(message[loc[1]:])
		}
	}
	return message
}

// exceptionBody renders the message line with the traceback following it:
// indented line-by-line when pretty-printing, as a single prefixed line
// otherwise.
func (f *Formatter) exceptionBody(rec classify.Record) string {
	message := f.transform(rec.Message, rec.Timestamp, f.cfg.Gather.PrettyPrint)
	if rec.RequestID != "" {
		message = strings.TrimRight(message, " ") + fmt.Sprintf("    (request_id: %s)", rec.RequestID)
	}

	trace := rec.ExcInfo
	if f.cfg.Gather.FixUpMessages {
		trace = f.stripLeadingTimestamp(trace, rec.Timestamp)
	}
	if trace == "" {
		return message
	}

	if f.cfg.Gather.PrettyPrint {
		var out strings.Builder
		out.WriteString(message)
		for _, line := range strings.Split(trace, "\n") {
			out.WriteString("\n  ")
			out.WriteString(line)
		}
		return out.String()
	}
	return message + "\n" + prefix(rec) + strings.ReplaceAll(trace, "\n", " ")
}

// proxyBody renders the envoy access-log shape on one line.
func (f *Formatter) proxyBody(rec classify.Record) string {
	field := func(key string) string {
		value, ok := rec.Fields[key]
		if !ok {
			return ""
		}
		if s, ok := value.(string); ok {
			return s
		}
		return fmt.Sprint(value)
	}

	body := fmt.Sprintf("%s \"%s %s %s\" %s, %s %s, %s %s",
		field("downstream_local_address"),
		field("method"),
		field("path"),
		field("protocol"),
		field("response_code"),
		field("bytes_sent"),
		field("bytes_received"),
		field("duration"),
		field("upstream_service_time"),
	)
	if rec.RequestID != "" {
		body += fmt.Sprintf("    (request_id: %s)", rec.RequestID)
	}
	if f.cfg.Gather.SpaceAfterMessage {
		body += " "
	}
	return body
}

// fieldsBody renders an object-shaped message with no message field of its
// own. Keys are encoded in sorted order, so output is deterministic.
func (f *Formatter) fieldsBody(rec classify.Record) string {
	fields := rec.Fields
	if f.cfg.Gather.FixUpMessages && rec.Timestamp != "" {
		// The timestamp already appears in the prefix column; drop the
		// field that supplied it rather than printing it twice.
		trimmed := make(map[string]any, len(fields))
		for key, value := range fields {
			if s, ok := value.(string); ok && s == rec.Timestamp {
				continue
			}
			trimmed[key] = value
		}
		fields = trimmed
	}

	var encoded []byte
	var err error
	if f.cfg.Gather.PrettyPrint {
		encoded, err = json.MarshalIndent(fields, "", "  ")
	} else {
		encoded, err = json.Marshal(fields)
	}
	if err != nil {
		// Fields came from json.Unmarshal, so this should not happen;
		// fall back to the raw line rather than losing the record.
		return rec.Raw
	}

	body := string(encoded)
	if f.cfg.Gather.SpaceAfterMessage {
		body += " "
	}
	return body
}

// finish appends the cosmetic blank line when configured.
func (f *Formatter) finish(line string) string {
	if f.cfg.Gather.BlankLineAfterEntry {
		return line + "\n"
	}
	return line
}

// prettyPrintObjects expands JSON objects embedded in a free-text message
// across indented lines. Only objects of meaningful size with at least one
// key are touched, and only when they parse as valid JSON.
func (f *Formatter) prettyPrintObjects(message string) string {
	const minObjectLen = 64

	var out strings.Builder
	rest := message
	changed := false

	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			break
		}
		end, ok := matchBrace(rest, start)
		if !ok {
			break
		}

		candidate := rest[start : end+1]
		if len(candidate) >= minObjectLen &&
			(strings.Contains(candidate, `":`) || strings.Contains(candidate, `':`)) &&
			json.Valid([]byte(candidate)) {
			indented, err := indentJSON(candidate)
			if err == nil {
				out.WriteString(rest[:start])
				out.WriteString(indented)
				rest = rest[end+1:]
				changed = true
				continue
			}
		}

		out.WriteString(rest[:end+1])
		rest = rest[end+1:]
	}

	if !changed {
		return message
	}
	out.WriteString(rest)
	return out.String()
}

// matchBrace finds the closing brace balancing the one at start, honouring
// string literals and escapes.
func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// indentJSON decodes and re-encodes so keys come out sorted, which keeps
// repeated formatting of the same record byte-identical.
func indentJSON(s string) (string, error) {
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return "", err
	}
	encoded, err := json.MarshalIndent(decoded, "", "  ")
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
