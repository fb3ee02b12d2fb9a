package central

import (
	"fmt"

	"github.com/starkware-libs/starksync-go/starknetapi"
)

// BlockNotFoundError: the feeder returned empty for a number below its tip.
type BlockNotFoundError struct {
	BlockNumber starknetapi.BlockNumber
}

func (e *BlockNotFoundError) Error() string {
	return fmt.Sprintf("central: block %s not found", e.BlockNumber)
}

// BadContractClassTypeError: the feeder returned the wrong class variant
// (e.g. a Cairo 1 class where a deprecated one was expected).
type BadContractClassTypeError struct{}

func (e *BadContractClassTypeError) Error() string { return "central: wrong contract class type" }

// StateUpdateNotFoundError: no state update exists for the requested block.
type StateUpdateNotFoundError struct {
	BlockNumber starknetapi.BlockNumber
}

func (e *StateUpdateNotFoundError) Error() string {
	return fmt.Sprintf("central: state update for block %s not found", e.BlockNumber)
}

// ClassNotFoundError: a class definition referenced by a state diff could
// not be fetched.
type ClassNotFoundError struct {
	ClassHash starknetapi.ClassHash
}

func (e *ClassNotFoundError) Error() string {
	return fmt.Sprintf("central: class %s not found", e.ClassHash)
}

// TransportError wraps a network/HTTP-level failure. RequestConstruction
// distinguishes a malformed-request error (fatal) from a wire-level
// failure such as a timeout or connection refusal (recoverable) — see
// Recoverable below and spec.md §4.7.
type TransportError struct {
	Cause               error
	RequestConstruction bool
}

func (e *TransportError) Error() string { return fmt.Sprintf("central: transport error: %v", e.Cause) }
func (e *TransportError) Unwrap() error { return e.Cause }

// BadStatusError wraps a non-2xx HTTP response.
type BadStatusError struct {
	Code    int
	Message string
}

func (e *BadStatusError) Error() string {
	return fmt.Sprintf("central: bad response status %d: %s", e.Code, e.Message)
}

// DecodeError wraps a malformed-payload failure. Syntax distinguishes a
// JSON syntax error (fatal) from any other decode failure such as a
// schema/type mismatch (recoverable) — see Recoverable below.
type DecodeError struct {
	Cause  error
	Syntax bool
}

func (e *DecodeError) Error() string { return fmt.Sprintf("central: decode error: %v", e.Cause) }
func (e *DecodeError) Unwrap() error { return e.Cause }

// Recoverable implements the fixed classification from spec.md §4.7 for
// errors raised by this package.
func Recoverable(err error) bool {
	switch e := err.(type) {
	case *TransportError:
		return !e.RequestConstruction
	case *BadStatusError:
		return e.Code != 404
	case *DecodeError:
		return !e.Syntax
	case *BlockNotFoundError, *BadContractClassTypeError, *StateUpdateNotFoundError, *ClassNotFoundError:
		return false
	default:
		return true
	}
}
