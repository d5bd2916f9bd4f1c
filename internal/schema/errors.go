package schema

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind tags a failure with its place in the research error taxonomy.
type Kind int

const (
	KindUnknown Kind = iota
	KindSearchUnavailable
	KindSearchTimeout
	KindGenerationUnavailable
	KindGenerationTimeout
	KindToolLoopExhausted
	KindUnexpectedToolCall
)

var kindNames = map[Kind]string{
	KindUnknown:               "Unknown",
	KindSearchUnavailable:     "SearchUnavailable",
	KindSearchTimeout:         "SearchTimeout",
	KindGenerationUnavailable: "GenerationUnavailable",
	KindGenerationTimeout:     "GenerationTimeout",
	KindToolLoopExhausted:     "ToolLoopExhausted",
	KindUnexpectedToolCall:    "UnexpectedToolCall",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsTimeout reports whether k is one of the timeout kinds.
func (k Kind) IsTimeout() bool {
	return k == KindSearchTimeout || k == KindGenerationTimeout
}

// Sentinels for errors.Is checks against a tagged *Error.
var (
	ErrSearchUnavailable     = errors.New("search unavailable")
	ErrSearchTimeout         = errors.New("search timed out")
	ErrGenerationUnavailable = errors.New("generation unavailable")
	ErrGenerationTimeout     = errors.New("generation timed out")
	ErrToolLoopExhausted     = errors.New("tool loop exhausted")
	ErrUnexpectedToolCall    = errors.New("unexpected tool call")
)

var kindSentinels = map[Kind]error{
	KindSearchUnavailable:     ErrSearchUnavailable,
	KindSearchTimeout:         ErrSearchTimeout,
	KindGenerationUnavailable: ErrGenerationUnavailable,
	KindGenerationTimeout:     ErrGenerationTimeout,
	KindToolLoopExhausted:     ErrToolLoopExhausted,
	KindUnexpectedToolCall:    ErrUnexpectedToolCall,
}

// Error is a tagged failure raised by a collaborator or by the tool loop.
// Transcript is set for tool-loop failures and holds the conversation up to
// the point of failure.
type Error struct {
	Kind       Kind
	Op         string
	Err        error
	Transcript *Messages
}

// NewError builds a tagged error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsTimeout reports whether err is a deadline failure of any origin.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if KindOf(err).IsTimeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// SearchError tags err as a Searcher failure. Errors that already carry a
// kind, and cancellations, are returned unchanged.
func SearchError(op string, err error) error {
	return classify(op, err, KindSearchTimeout, KindSearchUnavailable)
}

// GenerationError tags err as a Generator failure. Errors that already carry
// a kind, and cancellations, are returned unchanged.
func GenerationError(op string, err error) error {
	return classify(op, err, KindGenerationTimeout, KindGenerationUnavailable)
}

func classify(op string, err error, timeout, unavailable Kind) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown || errors.Is(err, context.Canceled) {
		return err
	}
	if IsTimeout(err) {
		return NewError(timeout, op, err)
	}
	return NewError(unavailable, op, err)
}
