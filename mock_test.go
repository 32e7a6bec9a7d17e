package enc28j60

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

var errMockSPI = errors.New("mock SPI failure")

// mockTxn is one chip-select framed transaction as seen by the chip.
type mockTxn struct {
	op   Opcode
	addr uint8
	// bank is the bank selected in ECON1 when the transaction started.
	bank uint8
	// w and r are the bytes clocked in and out after the opcode byte.
	w, r []byte
}

// mockChip emulates the SPI facing side of an ENC28J60: banked control registers,
// buffer memory with auto-incrementing pointers, MII management with a configurable
// busy time, receive packet counting and immediate transmission.
type mockChip struct {
	t    *testing.T
	mem  [bufferEnd + 1]byte
	regs [4][32]uint8
	phy  [32]uint16

	// phyBusyPolls is the number of MISTAT reads that report BUSY after each MII operation.
	phyBusyPolls int
	phyBusy      int
	mistatReads  int
	// clkPolls is the number of ESTAT reads without CLKRDY after a reset.
	clkPolls int
	clkWait  int
	pktcnt   uint8
	txFrames [][]byte
	txAbort  bool
	// txStuck keeps ECON1.TXRTS set after an aborted transmission.
	txStuck bool

	selected bool
	cur      mockTxn
	idx      int
	log      []mockTxn
	nolog    bool
	// failAt makes the SPI call with this 1-based index and all following fail.
	failAt int
	// panicAt makes the SPI call with this 1-based index panic.
	panicAt  int
	spiCalls int
}

func newMockChip(t *testing.T) *mockChip {
	m := &mockChip{t: t}
	m.reset()
	return m
}

// newTestDevice returns a configured device attached to a fresh mock chip with an empty log.
func newTestDevice(t *testing.T, cfg Config) (*Device, *mockChip) {
	t.Helper()
	m := newMockChip(t)
	if cfg.RxTimeout == 0 {
		cfg.RxTimeout = 20 * time.Millisecond
	}
	if cfg.PHYTimeout == 0 {
		cfg.PHYTimeout = 20 * time.Millisecond
	}
	if cfg.TxTimeout == 0 {
		cfg.TxTimeout = 20 * time.Millisecond
	}
	if cfg.MAC == ([6]byte{}) {
		cfg.MAC = [6]byte{0x00, 0x00, 0x12, 0x00, 0x00, 0x00}
	}
	var d Device
	err := d.Configure(m, m.setCS, cfg)
	if err != nil {
		t.Fatal("configure:", err)
	}
	m.log = m.log[:0]
	return &d, m
}

func (m *mockChip) reset() {
	m.regs = [4][32]uint8{}
	m.phy = [32]uint16{}
	m.setPair(ERDPTL, 0x05fa)
	m.setPair(ERXSTL, 0x05fa)
	m.setPair(ERXRDPTL, 0x05fa)
	m.setPair(ERXWRPTL, 0x05fa)
	m.setPair(ERXNDL, bufferEnd)
	m.setPair(MAMXFLL, 1536)
	*m.reg(ERXFCON) = erxfconUCEN | erxfconBCEN | 0x20
	*m.reg(ECON2) = econ2AUTOINC
	*m.reg(EREVID) = 6
	m.phy[PHID1] = phid1Expected
	m.phy[PHID2] = phid2Expected
	m.pktcnt = 0
	m.phyBusy = 0
	m.clkWait = m.clkPolls
}

// SPI side, implements drivers.SPI.

func (m *mockChip) Tx(w, r []byte) error {
	m.spiCalls++
	if m.panicAt > 0 && m.spiCalls == m.panicAt {
		panic(errMockSPI)
	}
	if m.failAt > 0 && m.spiCalls >= m.failAt {
		return errMockSPI
	}
	if !m.selected {
		m.t.Error("SPI transfer without chip select")
	}
	n := max(len(w), len(r))
	for i := 0; i < n; i++ {
		var in byte
		if i < len(w) {
			in = w[i]
		}
		out := m.exchange(in)
		if i < len(r) {
			r[i] = out
		}
	}
	return nil
}

func (m *mockChip) Transfer(b byte) (byte, error) {
	var r [1]byte
	err := m.Tx([]byte{b}, r[:])
	return r[0], err
}

func (m *mockChip) setCS(level bool) {
	if !level {
		if m.selected {
			m.t.Error("chip selected twice")
		}
		m.selected = true
		m.idx = 0
		m.cur = mockTxn{}
		return
	}
	if !m.selected {
		return
	}
	m.selected = false
	if m.idx == 0 {
		return // Aborted before opcode.
	}
	if m.cur.op == OpReset {
		m.reset()
	}
	if !m.nolog {
		m.log = append(m.log, m.cur)
	}
}

func (m *mockChip) exchange(in byte) (out byte) {
	idx := m.idx
	m.idx++
	if idx == 0 {
		m.cur.bank = m.bank()
		switch in {
		case byte(OpReset), byte(OpReadBuffer), byte(OpWriteBuffer):
			m.cur.op = Opcode(in)
		default:
			m.cur.op = Opcode(in & 0xe0)
			m.cur.addr = in & regAddrMask
		}
		return 0
	}
	addr := m.cur.addr
	switch m.cur.op {
	case OpReadControl:
		dataIdx := 1
		if m.isMACMII(m.cur.bank, addr) {
			dataIdx = 2
		}
		if idx == dataIdx {
			out = m.readReg(addr)
		}
	case OpWriteControl:
		if idx == 1 {
			m.writeReg(addr, in)
		}
	case OpBitSet:
		if idx == 1 {
			m.bitSet(addr, in)
		}
	case OpBitClear:
		if idx == 1 {
			*m.regAt(m.bank(), addr) &^= in
		}
	case OpReadBuffer:
		ptr := m.pair(ERDPTL)
		out = m.mem[ptr]
		m.setPair(ERDPTL, m.nextRead(ptr))
	case OpWriteBuffer:
		ptr := m.pair(EWRPTL)
		m.mem[ptr] = in
		m.setPair(EWRPTL, (ptr+1)&bufferEnd)
	}
	if !m.nolog {
		m.cur.w = append(m.cur.w, in)
		m.cur.r = append(m.cur.r, out)
	}
	return out
}

func (m *mockChip) bank() uint8 { return m.regs[0][ECON1.Addr()] & (econ1BSEL1 | econ1BSEL0) }

func (m *mockChip) isMACMII(bank, addr uint8) bool {
	if addr >= commonRegStart {
		return false
	}
	return bank == 2 || (bank == 3 && (addr <= 0x05 || addr == 0x0a))
}

func (m *mockChip) regAt(bank, addr uint8) *uint8 {
	if addr >= commonRegStart {
		bank = 0
	}
	return &m.regs[bank][addr]
}

func (m *mockChip) reg(r Register) *uint8 { return m.regAt(r.Bank(), r.Addr()) }

func (m *mockChip) pair(low Register) uint16 {
	return uint16(*m.reg(low)) | uint16(*m.reg(low + 1))<<8
}

func (m *mockChip) setPair(low Register, v uint16) {
	*m.reg(low) = uint8(v)
	*m.reg(low + 1) = uint8(v >> 8)
}

func (m *mockChip) nextRead(ptr uint16) uint16 {
	if ptr == m.pair(ERXNDL) {
		return m.pair(ERXSTL)
	}
	return (ptr + 1) & bufferEnd
}

func (m *mockChip) readReg(addr uint8) uint8 {
	bank := m.bank()
	v := *m.regAt(bank, addr)
	switch {
	case bank == 3 && addr == MISTAT.Addr():
		m.mistatReads++
		if m.phyBusy > 0 {
			m.phyBusy--
			return mistatBUSY
		}
		return 0
	case addr == ESTAT.Addr():
		if m.clkWait > 0 {
			m.clkWait--
			return v &^ estatCLKRDY
		}
		return v | estatCLKRDY
	case addr == EIR.Addr():
		if m.pktcnt > 0 {
			return v | eirPKTIF
		}
		return v &^ eirPKTIF
	case bank == 1 && addr == EPKTCNT.Addr():
		return m.pktcnt
	}
	return v
}

func (m *mockChip) writeReg(addr, v uint8) {
	bank := m.bank()
	*m.regAt(bank, addr) = v
	switch {
	case bank == 2 && addr == MICMD.Addr() && v&micmdMIIRD != 0:
		val := m.phy[*m.reg(MIREGADR)&regAddrMask]
		m.setPair(MIRDL, val)
		m.phyBusy = m.phyBusyPolls
	case bank == 2 && addr == MIWRH.Addr():
		m.phy[*m.reg(MIREGADR)&regAddrMask] = m.pair(MIWRL)
		m.phyBusy = m.phyBusyPolls
	case bank == 0 && addr == ERXSTH.Addr():
		m.setPair(ERXWRPTL, m.pair(ERXSTL))
	}
}

func (m *mockChip) bitSet(addr, mask uint8) {
	r := m.regAt(m.bank(), addr)
	*r |= mask
	switch {
	case addr == ECON2.Addr() && mask&econ2PKTDEC != 0:
		*r &^= econ2PKTDEC
		if m.pktcnt > 0 {
			m.pktcnt--
		}
	case addr == ECON1.Addr() && mask&econ1TXRTS != 0:
		m.transmit()
	case addr == ECON1.Addr() && mask&econ1TXRST != 0:
		*m.reg(ESTAT) &^= estatTXABRT
	}
}

// transmit completes the staged frame immediately and writes the status vector after ETXND.
func (m *mockChip) transmit() {
	st, nd := m.pair(ETXSTL), m.pair(ETXNDL)
	frame := append([]byte(nil), m.mem[st+1:nd+1]...)
	m.txFrames = append(m.txFrames, frame)
	var tsv TxStatus
	binary.LittleEndian.PutUint16(tsv[0:2], uint16(len(frame)))
	binary.LittleEndian.PutUint16(tsv[4:6], uint16(len(frame)))
	if m.txAbort {
		tsv[3] |= 1 << 5 // late collision
		*m.reg(ESTAT) |= estatTXABRT
		*m.reg(EIR) |= eirTXERIF
	} else {
		tsv[2] |= 1 << 7 // done
	}
	copy(m.mem[nd+1:], tsv[:])
	if m.txAbort && m.txStuck {
		return
	}
	*m.reg(EIR) |= eirTXIF
	*m.reg(ECON1) &^= econ1TXRTS
}

// deliverRaw places a packet with an explicit header at the receive write pointer
// and moves the write pointer to the header's next packet pointer.
func (m *mockChip) deliverRaw(header [rxHeaderSize]byte, payload []byte) {
	ptr := m.pair(ERXWRPTL)
	for _, b := range header {
		m.mem[ptr] = b
		ptr = m.nextRead(ptr)
	}
	for _, b := range payload {
		m.mem[ptr] = b
		ptr = m.nextRead(ptr)
	}
	m.setPair(ERXWRPTL, binary.LittleEndian.Uint16(header[0:2]))
	m.pktcnt++
}

// deliver places a frame the way the chip does: packets start on even addresses
// and wrap from ERXND to ERXST.
func (m *mockChip) deliver(frame []byte, status RxStatus) (next uint16) {
	ptr := m.pair(ERXWRPTL)
	end := ptr
	for i := 0; i < rxHeaderSize+len(frame); i++ {
		end = m.nextRead(end)
	}
	if end%2 != 0 {
		end = m.nextRead(end)
	}
	var hdr [rxHeaderSize]byte
	binary.LittleEndian.PutUint16(hdr[0:2], end)
	binary.LittleEndian.PutUint16(hdr[2:4], uint16(len(frame)))
	binary.LittleEndian.PutUint16(hdr[4:6], uint16(status))
	m.deliverRaw(hdr, frame)
	return end
}

// ops returns the logged transactions with the given opcode.
func (m *mockChip) ops(op Opcode) (txns []mockTxn) {
	for _, txn := range m.log {
		if txn.op == op {
			txns = append(txns, txn)
		}
	}
	return txns
}

// registerWrites returns the values written with WCR to register r, in order.
func (m *mockChip) registerWrites(r Register) (vals []uint8) {
	for _, txn := range m.log {
		if txn.op == OpWriteControl && txn.addr == r.Addr() && (r.IsCommon() || txn.bank == r.Bank()) {
			vals = append(vals, txn.w[0])
		}
	}
	return vals
}
