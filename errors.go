package samba

import "fmt"

// DiscoveryError means the transport could not enumerate devices at all,
// as opposed to finding none.
type DiscoveryError struct {
	Transport string
	Err       error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("%s enumeration failed: %v", e.Transport, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// FlashError reports the page on which programming stopped.
type FlashError struct {
	Page int
	Err  error
}

func (e *FlashError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *FlashError) Unwrap() error { return e.Err }

// VerifyError is a read-back mismatch.
type VerifyError struct {
	Address  uint32
	Expected uint32
	Actual   uint32
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify mismatch at 0x%08X: wrote 0x%08X, read 0x%08X",
		e.Address, e.Expected, e.Actual)
}
