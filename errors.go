package enc28j60

import (
	"errors"
	"strconv"
)

var (
	// ErrBusFault is matched by every error originating in the SPI transfer itself.
	ErrBusFault = errors.New("enc28j60: bus fault")
	// ErrTimeout is matched when a busy-wait exceeds its configured bound.
	// The operation may be retried by the caller.
	ErrTimeout = errors.New("enc28j60: timeout")
	// ErrInvalidRegister is returned before any bus traffic when a register
	// identifier does not name a register of the chip.
	ErrInvalidRegister = errors.New("enc28j60: invalid register")
	// ErrTransmitAborted is returned when the chip reports ESTAT.TXABRT after a transmission.
	ErrTransmitAborted = errors.New("enc28j60: transmit aborted")
	// ErrReceiveOverrun is returned when the receive status vector reports a
	// long event or dropped packet since the last reception.
	ErrReceiveOverrun = errors.New("enc28j60: receive overrun")

	errFrameTooLong  = errors.New("enc28j60: frame exceeds maximum frame length")
	errUnexpectedPHY = errors.New("enc28j60: unexpected PHY identifier")
	errNotConfigured = errors.New("enc28j60: device not configured")
)

// BusError is returned when the underlying SPI transfer fails during a bus transaction.
// Chip select is always released before a BusError is returned.
type BusError struct {
	Op  Opcode
	Err error
}

func (e *BusError) Error() string {
	return "enc28j60: bus fault during " + e.Op.String() + ": " + e.Err.Error()
}

func (e *BusError) Unwrap() error { return e.Err }

func (e *BusError) Is(target error) bool { return target == ErrBusFault }

// TimeoutError is returned when a status bit did not reach the awaited state in time.
type TimeoutError struct {
	// Op names the awaited condition.
	Op string
	// Polls is the number of status reads performed before giving up.
	Polls int
}

func (e *TimeoutError) Error() string {
	return "enc28j60: timeout waiting for " + e.Op + " after " + strconv.Itoa(e.Polls) + " polls"
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }
