package weather

import (
	"errors"
)

// GenericFailureMessage is shown for every transport or parse failure.
const GenericFailureMessage = "Unable to fetch weather data. Please try again later."

// ErrorKind classifies a failed query.
type ErrorKind int

const (
	// KindTransport covers network, model API, decoding and validation failures.
	KindTransport ErrorKind = iota
	// KindLocationNotFound means the model explicitly reported it could not answer.
	KindLocationNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindLocationNotFound:
		return "location_not_found"
	default:
		return "transport"
	}
}

// Sentinels for errors.Is matching against a *QueryError.
var (
	ErrLocationNotFound = errors.New("location not found")
	ErrTransport        = errors.New("weather query failed")
)

// QueryError is returned by every Client fetch. Message is safe to show to users;
// the cause is only reachable through Unwrap.
type QueryError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *QueryError) Error() string { return e.Message }

func (e *QueryError) Unwrap() error { return e.Err }

// Is matches the kind sentinels.
func (e *QueryError) Is(target error) bool {
	switch target {
	case ErrLocationNotFound:
		return e.Kind == KindLocationNotFound
	case ErrTransport:
		return e.Kind == KindTransport
	}
	return false
}

func notFound(msg string) *QueryError {
	return &QueryError{Kind: KindLocationNotFound, Message: msg}
}

func transport(err error) *QueryError {
	return &QueryError{Kind: KindTransport, Message: GenericFailureMessage, Err: err}
}

// AsQueryError extracts a *QueryError from err, classifying anything else as transport.
func AsQueryError(err error) *QueryError {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe
	}
	return transport(err)
}
