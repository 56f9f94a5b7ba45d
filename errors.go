package usercache

import (
	"errors"
	"fmt"
)

var (
	ErrNilProvider = errors.New("usercache: provider is required")
	ErrNilCodec    = errors.New("usercache: codec is required")

	// ErrSuperseded is returned by SetWithGen when the key was invalidated
	// after its generation was observed; nothing was written.
	ErrSuperseded = errors.New("usercache: write superseded by invalidation")
)

// KeyStoreError reports a failed round-trip to the key-value store.
// The cache never returns it from a read; it reaches callers only from
// explicit writes (SetWithGen, Invalidate, warm-up).
type KeyStoreError struct {
	Op  string // get, set, del, keys, info
	Key string
	Err error
}

func (e *KeyStoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("usercache: key store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("usercache: key store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *KeyStoreError) Unwrap() error { return e.Err }

type InvalidateError struct {
	Key     string
	BumpErr error
	DelErr  error
}

func (e *InvalidateError) Error() string {
	switch {
	case e.BumpErr != nil && e.DelErr != nil:
		return fmt.Sprintf("invalidate %q failed: gen bump and delete failed: bump=%v; delete=%v",
			e.Key, e.BumpErr, e.DelErr)
	case e.BumpErr != nil:
		return fmt.Sprintf("invalidate %q: gen bump failed: %v", e.Key, e.BumpErr)
	case e.DelErr != nil:
		return fmt.Sprintf("invalidate %q: delete failed: %v", e.Key, e.DelErr)
	default:
		return fmt.Sprintf("invalidate %q: unknown error", e.Key)
	}
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.BumpErr != nil {
		errs = append(errs, e.BumpErr)
	}
	if e.DelErr != nil {
		errs = append(errs, e.DelErr)
	}
	return errs
}
