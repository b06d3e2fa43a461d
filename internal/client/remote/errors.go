package remote

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("record not found")
	// ErrRejected marks a request the store understood and refused.
	ErrRejected = errors.New("rejected by server")
)

// Rejected reports whether err is a definitive refusal: replaying the same
// request will fail the same way. A record owned by someone else is
// refused, an expired session is not.
func Rejected(err error) bool {
	return errors.Is(err, ErrRejected) || errors.Is(err, ErrNotFound)
}
