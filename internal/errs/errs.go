// Package errs defines the error taxonomy from the error-handling design:
// one typed kind per failure class, each carrying a stable code string in
// the ORC_E_* convention and wrapping an underlying cause.
package errs

import "fmt"

type Kind string

const (
	KindCatalog         Kind = "ORC_E_CATALOG"
	KindBinSpec         Kind = "ORC_E_BIN_SPEC"
	KindLedger          Kind = "ORC_E_LEDGER"
	KindForecast        Kind = "ORC_E_FORECAST"
	KindDistribution    Kind = "ORC_E_DISTRIBUTION"
	KindResolution      Kind = "ORC_E_RESOLUTION"
	KindEnsemble        Kind = "ORC_E_ENSEMBLE"
	KindScoring         Kind = "ORC_E_SCORING"
	KindUnreliableRun   Kind = "ORC_E_UNRELIABLE_RUN"
	KindUsage           Kind = "ORC_E_USAGE"
	KindIO              Kind = "ORC_E_IO"
)

// Error is the single concrete error type for every kind above. Kind
// discriminates the taxonomy; Fatal marks whether the condition must abort
// the current command or merely affects one record while the command
// continues.
type Error struct {
	Kind    Kind
	Message string
	Fatal   bool
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, fatal bool, message string) *Error {
	return &Error{Kind: kind, Message: message, Fatal: fatal}
}

func Wrap(kind Kind, fatal bool, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Fatal: fatal, Cause: cause}
}

func Catalog(format string, args ...any) *Error {
	return New(KindCatalog, true, fmt.Sprintf(format, args...))
}

func BinSpec(format string, args ...any) *Error {
	return New(KindBinSpec, true, fmt.Sprintf(format, args...))
}

func Ledger(cause error, format string, args ...any) *Error {
	return Wrap(KindLedger, true, fmt.Sprintf(format, args...), cause)
}

func Forecast(format string, args ...any) *Error {
	return New(KindForecast, false, fmt.Sprintf(format, args...))
}

func Distribution(format string, args ...any) *Error {
	return New(KindDistribution, false, fmt.Sprintf(format, args...))
}

func Resolution(format string, args ...any) *Error {
	return New(KindResolution, false, fmt.Sprintf(format, args...))
}

func Ensemble(fatal bool, format string, args ...any) *Error {
	return New(KindEnsemble, fatal, fmt.Sprintf(format, args...))
}

func Scoring(format string, args ...any) *Error {
	return New(KindScoring, false, fmt.Sprintf(format, args...))
}

func UnreliableRun(format string, args ...any) *Error {
	return New(KindUnreliableRun, false, fmt.Sprintf(format, args...))
}

// As reports whether err (or something it wraps) is an *Error of the given
// Kind, returning it for inspection.
func As(err error, kind Kind) (*Error, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == kind {
				return e, true
			}
			err = e.Cause
			continue
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
