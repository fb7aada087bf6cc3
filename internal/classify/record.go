package classify

// Kind identifies the detected shape of a log line.
type Kind int

const (
	// KindInvalid marks a line that is not a stern JSON envelope. The raw
	// text is preserved so it can still be printed best-effort.
	KindInvalid Kind = iota
	// KindPlain is a valid envelope whose message is free text.
	KindPlain
	// KindObject is a valid envelope whose message is a JSON object with no
	// recognized shape.
	KindObject
	// KindTimestamped is a JSON object message carrying a timestamp-like
	// field.
	KindTimestamped
	// KindException is a JSON object message with both exc_info and message.
	KindException
	// KindProxy is a JSON object message shaped like an envoy access log.
	KindProxy
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindPlain:
		return "plain"
	case KindObject:
		return "object"
	case KindTimestamped:
		return "timestamped"
	case KindException:
		return "exception"
	case KindProxy:
		return "proxy"
	default:
		return "unknown"
	}
}

// Envelope carries the structured fields stern attaches to every line.
type Envelope struct {
	Context   string
	Node      string
	Namespace string
	Pod       string
	Container string
}

// Record is a classified log line ready for formatting.
type Record struct {
	Kind Kind
	Envelope

	// Timestamp extracted from the message prefix or from a timestamp-like
	// field of the inner object. Empty when none was found.
	Timestamp string

	// Message holds the free-text body: the whole message for plain
	// records, or the inner object's message field when one exists.
	Message string

	// Fields is the parsed inner JSON object for object-shaped records.
	Fields map[string]any

	// ExcInfo is the traceback attached to exception records.
	ExcInfo string

	// RequestID is surfaced for exception and proxy records when present.
	RequestID string

	// Raw is the untouched source line, kept for invalid records.
	Raw string
}
