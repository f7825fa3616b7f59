// Package docerrors defines the typed error kinds used across the search
// core, each carrying enough context for callers to branch on errors.As
// without parsing message strings. All are produced via New or Wrap; Wrap
// keeps the underlying cause reachable through Unwrap.
package docerrors

import "fmt"

// Kind identifies one of the search core's typed error kinds.
type Kind string

const (
	KindInvalidArgument         Kind = "invalid_argument"
	KindUnknownAnalyzerProfile  Kind = "unknown_analyzer_profile"
	KindNoAmbientTransaction    Kind = "no_ambient_transaction"
	KindWrongTransaction        Kind = "wrong_transaction"
	KindStaleProjectionUpdate   Kind = "stale_projection_update"
	KindAnalyzerOrContentDrift  Kind = "analyzer_or_content_drift"
	KindStorageBusy             Kind = "storage_busy"
	KindSearchIndexCorrupted    Kind = "search_index_corrupted"
	KindTimeout                 Kind = "timeout"
	KindCanceled                Kind = "canceled"
	KindReplayPoison            Kind = "replay_poison"
)

// Error is the common shape for every docsearch error kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, docerrors.New(KindX, "")) to match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an *Error of the given kind with no wrapped cause.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Sentinels for errors.Is comparisons where no extra context is needed.
var (
	ErrInvalidArgument        = New(KindInvalidArgument, "invalid argument")
	ErrUnknownAnalyzerProfile = New(KindUnknownAnalyzerProfile, "unknown analyzer profile")
	ErrNoAmbientTransaction   = New(KindNoAmbientTransaction, "no ambient transaction")
	ErrWrongTransaction       = New(KindWrongTransaction, "wrong transaction")
	ErrStaleProjectionUpdate  = New(KindStaleProjectionUpdate, "stale projection update")
	ErrAnalyzerOrContentDrift = New(KindAnalyzerOrContentDrift, "analyzer or content drift")
	ErrStorageBusy            = New(KindStorageBusy, "storage busy")
	ErrSearchIndexCorrupted   = New(KindSearchIndexCorrupted, "search index corrupted")
	ErrTimeout                = New(KindTimeout, "timeout")
	ErrCanceled               = New(KindCanceled, "canceled")
	ErrReplayPoison           = New(KindReplayPoison, "replay poison")
)

// Is reports whether err is of the given kind, walking the Unwrap chain.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == kind {
				return true
			}
			err = e.Err
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
