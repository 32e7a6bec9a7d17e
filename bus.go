package enc28j60

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"tinygo.org/x/drivers"
)

// Opcode is the 3-bit SPI instruction placed in the top of the first byte of a bus transaction.
type Opcode uint8

const (
	OpReadControl  Opcode = 0x00 // RCR
	OpReadBuffer   Opcode = 0x3a // RBM
	OpWriteControl Opcode = 0x40 // WCR
	OpWriteBuffer  Opcode = 0x7a // WBM
	OpBitSet       Opcode = 0x80 // BFS
	OpBitClear     Opcode = 0xa0 // BFC
	OpReset        Opcode = 0xff // SRC
)

func (op Opcode) String() string {
	switch op {
	case OpReadControl:
		return "RCR"
	case OpReadBuffer:
		return "RBM"
	case OpWriteControl:
		return "WCR"
	case OpWriteBuffer:
		return "WBM"
	case OpBitSet:
		return "BFS"
	case OpBitClear:
		return "BFC"
	case OpReset:
		return "SRC"
	}
	return "Opcode(0x" + strconv.FormatUint(uint64(op), 16) + ")"
}

// resetSettle is the wait after a system reset command before the chip accepts
// another transaction. Rev B7 errata asks for at least 1ms.
const resetSettle = time.Millisecond

// bus issues single SPI transactions. Each method owns chip select for exactly
// one transaction and releases it on every exit path.
type bus struct {
	spi drivers.SPI
	// cs drives the active-low chip select line.
	cs   func(level bool)
	wbuf [3]byte
	rbuf [3]byte
	log  *slog.Logger
}

func (b *bus) selectChip()   { b.cs(false) }
func (b *bus) deselectChip() { b.cs(true) }

// rcr reads a control register. MAC and MII registers shift out a dummy byte before data.
func (b *bus) rcr(addr uint8, macmii bool) (uint8, error) {
	n := 2
	if macmii {
		n = 3
	}
	b.wbuf = [3]byte{byte(OpReadControl) | addr&regAddrMask}
	b.selectChip()
	defer b.deselectChip()
	err := b.spi.Tx(b.wbuf[:n], b.rbuf[:n])
	if err != nil {
		return 0, &BusError{Op: OpReadControl, Err: err}
	}
	v := b.rbuf[n-1]
	b.trace(OpReadControl, addr, v)
	return v, nil
}

// rbm reads len(dst) bytes of buffer memory starting at ERDPT.
func (b *bus) rbm(dst []byte) error {
	b.selectChip()
	defer b.deselectChip()
	_, err := b.spi.Transfer(byte(OpReadBuffer))
	if err == nil {
		err = b.spi.Tx(nil, dst)
	}
	if err != nil {
		return &BusError{Op: OpReadBuffer, Err: err}
	}
	b.traceBuf(OpReadBuffer, len(dst))
	return nil
}

// wcr writes a control register.
func (b *bus) wcr(addr, v uint8) error {
	return b.writeOp(OpWriteControl, addr, v)
}

// wbm writes src to buffer memory starting at EWRPT.
func (b *bus) wbm(src []byte) error {
	b.selectChip()
	defer b.deselectChip()
	_, err := b.spi.Transfer(byte(OpWriteBuffer))
	if err == nil {
		err = b.spi.Tx(src, nil)
	}
	if err != nil {
		return &BusError{Op: OpWriteBuffer, Err: err}
	}
	b.traceBuf(OpWriteBuffer, len(src))
	return nil
}

// bfs ORs mask into an ETH register. Not valid for MAC/MII registers.
func (b *bus) bfs(addr, mask uint8) error {
	return b.writeOp(OpBitSet, addr, mask)
}

// bfc clears the bits of mask in an ETH register. Not valid for MAC/MII registers.
func (b *bus) bfc(addr, mask uint8) error {
	return b.writeOp(OpBitClear, addr, mask)
}

// src issues a system reset. The caller waits resetSettle before the next transaction.
func (b *bus) src() error {
	b.selectChip()
	defer b.deselectChip()
	_, err := b.spi.Transfer(byte(OpReset))
	if err != nil {
		return &BusError{Op: OpReset, Err: err}
	}
	b.trace(OpReset, 0, 0)
	return nil
}

func (b *bus) writeOp(op Opcode, addr, v uint8) error {
	b.wbuf = [3]byte{byte(op) | addr&regAddrMask, v}
	b.selectChip()
	defer b.deselectChip()
	err := b.spi.Tx(b.wbuf[:2], b.rbuf[:2])
	if err != nil {
		return &BusError{Op: op, Err: err}
	}
	b.trace(op, addr, v)
	return nil
}

func (b *bus) trace(op Opcode, addr, v uint8) {
	if b.log == nil || !b.log.Enabled(context.Background(), LevelTrace) {
		return
	}
	b.log.LogAttrs(context.Background(), LevelTrace, "bus",
		slog.String("op", op.String()),
		slog.Uint64("addr", uint64(addr&regAddrMask)),
		slog.Uint64("val", uint64(v)),
	)
}

func (b *bus) traceBuf(op Opcode, n int) {
	if b.log == nil || !b.log.Enabled(context.Background(), LevelTrace) {
		return
	}
	b.log.LogAttrs(context.Background(), LevelTrace, "bus",
		slog.String("op", op.String()),
		slog.Int("len", n),
	)
}
