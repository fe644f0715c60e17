package dispatcher

import "fmt"

// StorageError is a failed read or write against the blob store.
type StorageError struct {
    Op  string // "get"|"put"
    Key string
    Err error
}

func (e *StorageError) Error() string {
    return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// StateError is a failed write to the status or trace store.
type StateError struct {
    JobID string
    Err   error
}

func (e *StateError) Error() string {
    return fmt.Sprintf("job %s: state update failed: %v", e.JobID, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }
