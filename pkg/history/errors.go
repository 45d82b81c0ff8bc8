package history

import "fmt"

// CacheReadError reports a partition that exists but could not be read or
// parsed. The cache logs it and treats the partition as absent.
type CacheReadError struct {
	Name string
	Err  error
}

func (e *CacheReadError) Error() string {
	return fmt.Sprintf("cache read error: partition %s: %v", e.Name, e.Err)
}

func (e *CacheReadError) Unwrap() error { return e.Err }

// CacheWriteError reports a partition that could not be persisted.
type CacheWriteError struct {
	Name string
	Err  error
}

func (e *CacheWriteError) Error() string {
	return fmt.Sprintf("cache write error: partition %s: %v", e.Name, e.Err)
}

func (e *CacheWriteError) Unwrap() error { return e.Err }
