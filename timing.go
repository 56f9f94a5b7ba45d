package usercache

import "time"

// Timed runs fn and logs how long it took under name.
func Timed[T any](log Logger, name string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	f := Fields{"op": name, "elapsed": time.Since(start).String()}
	if err != nil {
		f["err"] = err
	}
	log.Info("timed", f)
	return v, err
}
