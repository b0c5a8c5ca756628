package kernel

import (
	"fmt"
	"time"
)

// DispatchError reports that the handler call itself failed.
type DispatchError struct {
	Timeout time.Duration // set when the call exceeded the kernel timeout
	Err     error
}

func (e *DispatchError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("execution handler did not answer within %s: %v", e.Timeout, e.Err)
	}
	return fmt.Sprintf("execution handler failed: %v", e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
