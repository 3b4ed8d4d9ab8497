package kvx

import "context"

type unavailable struct{}

var (
	_ Storage = unavailable{}
	_ Swapper = unavailable{}
)

// Unavailable returns the storage used when no persistence surface exists:
// reads report ErrUnavailable and writes are dropped.
func Unavailable() Storage {
	return unavailable{}
}

func (unavailable) Get(context.Context, string) (string, bool, error) {
	return "", false, ErrUnavailable
}

func (unavailable) Set(context.Context, string, string) error {
	return ErrUnavailable
}

func (unavailable) CompareAndSwap(context.Context, string, *string, string) (bool, error) {
	return false, ErrUnavailable
}
