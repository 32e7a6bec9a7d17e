package enc28j60

import (
	"encoding/binary"
	"log/slog"

	"github.com/soypat/lneto"
	"github.com/soypat/lneto/ethernet"
)

const (
	rxHeaderSize = 6
	sizeFCS      = 4
)

// RxHeader is the 6-byte header the chip stores in front of every received frame.
type RxHeader struct {
	// NextPacket is the buffer address of the following packet as reported by the chip.
	// The chip never reports an odd address: after an odd length frame it points one
	// byte short of the true next packet. The value is kept as reported.
	NextPacket uint16
	// Length is the received byte count including the 4-byte FCS.
	Length uint16
	// Status holds the receive status vector flags.
	Status RxStatus
}

// RxStatus holds bits 16 to 31 of the receive status vector. See datasheet table 7-3.
type RxStatus uint16

const (
	RxLongDropEvent    RxStatus = 1 << 0
	RxCarrierEvent     RxStatus = 1 << 2
	RxCRCError         RxStatus = 1 << 4
	RxLengthCheckError RxStatus = 1 << 5
	RxLengthOutOfRange RxStatus = 1 << 6
	RxOK               RxStatus = 1 << 7
	RxMulticast        RxStatus = 1 << 8
	RxBroadcast        RxStatus = 1 << 9
	RxDribbleNibble    RxStatus = 1 << 10
	RxControlFrame     RxStatus = 1 << 11
	RxPauseFrame       RxStatus = 1 << 12
	RxUnknownOpcode    RxStatus = 1 << 13
	RxVLAN             RxStatus = 1 << 14
)

// LongDropEvent reports a packet over 50000 bit times or a packet dropped since the last receive.
func (s RxStatus) LongDropEvent() bool { return s&RxLongDropEvent != 0 }

// CRCError reports the frame FCS did not match.
func (s RxStatus) CRCError() bool { return s&RxCRCError != 0 }

// ReceivedOK reports a valid frame with no CRC or symbol errors.
func (s RxStatus) ReceivedOK() bool { return s&RxOK != 0 }

// Multicast reports a frame addressed to a multicast address.
func (s RxStatus) Multicast() bool { return s&RxMulticast != 0 }

// Broadcast reports a frame addressed to the broadcast address.
func (s RxStatus) Broadcast() bool { return s&RxBroadcast != 0 }

// ReceivePacket waits for a packet, reads it into buf and frees its space in the
// receive ring. The frame (including FCS) occupies buf[:hdr.Length]; the header is
// returned separately and never written into buf.
//
// ReceivePacket enables reception, waits up to Config.RxTimeout for EIR.PKTIF,
// disables reception, reads the header and the frame, then writes hdr.NextPacket to
// ERXRDPT and ERDPT and decrements the packet count.
// Once the header has been read the ring pointers are always advanced, also when an
// error is returned: [lneto.ErrShortBuffer] if buf cannot hold the frame (buf is filled
// with the frame start), [ErrReceiveOverrun] or [lneto.ErrBadCRC] for status vector errors.
func (d *Device) ReceivePacket(buf []byte) (hdr RxHeader, err error) {
	if !d.configured {
		return hdr, errNotConfigured
	}
	err = d.bus.bfs(ECON1.Addr(), econ1RXEN)
	if err != nil {
		return hdr, err
	}
	err = poll("packet", d.cfg.RxTimeout, func() (bool, error) {
		eir, err := d.ReadRegister(EIR)
		return eir&eirPKTIF != 0, err
	})
	if err != nil {
		return hdr, err
	}
	err = d.bus.bfc(ECON1.Addr(), econ1RXEN)
	if err != nil {
		return hdr, err
	}

	var raw [rxHeaderSize]byte
	err = d.bus.rbm(raw[:])
	if err != nil {
		return hdr, err
	}
	hdr = RxHeader{
		NextPacket: binary.LittleEndian.Uint16(raw[0:2]),
		Length:     binary.LittleEndian.Uint16(raw[2:4]),
		Status:     RxStatus(binary.LittleEndian.Uint16(raw[4:6])),
	}
	n := min(int(hdr.Length), len(buf))
	if n > 0 {
		err = d.bus.rbm(buf[:n])
		if err != nil {
			return hdr, err
		}
	}
	err = d.freePacket(hdr.NextPacket)
	if err != nil {
		return hdr, err
	}

	switch {
	case n < int(hdr.Length):
		err = lneto.ErrShortBuffer
	case hdr.Status.LongDropEvent():
		err = ErrReceiveOverrun
	case hdr.Status.CRCError():
		err = lneto.ErrBadCRC
	}
	if err != nil {
		d.logerr("enc28j60:rx",
			slog.Uint64("next", uint64(hdr.NextPacket)),
			slog.Uint64("plen", uint64(hdr.Length)),
			slog.Uint64("status", uint64(hdr.Status)),
			slog.String("err", err.Error()),
		)
	}
	return hdr, err
}

// freePacket hands the space up to next back to the chip. Skipping the ERXRDPT
// write starves the receive ring after a few packets.
func (d *Device) freePacket(next uint16) error {
	err := d.WriteRegisterPair(ERXRDPTL, next)
	if err != nil {
		return err
	}
	err = d.WriteRegisterPair(ERDPTL, next)
	if err != nil {
		return err
	}
	d.rxNext = next
	// Decrementing EPKTCNT clears EIR.PKTIF once all packets are consumed.
	return d.bus.bfs(ECON2.Addr(), econ2PKTDEC)
}

// PacketCount returns the number of packets waiting in the receive ring (EPKTCNT).
func (d *Device) PacketCount() (uint8, error) {
	return d.ReadRegister(EPKTCNT)
}

// RxFrame returns the Ethernet frame received into buf by [Device.ReceivePacket]
// with the trailing FCS removed.
func RxFrame(buf []byte, hdr RxHeader) (ethernet.Frame, error) {
	n := int(hdr.Length) - sizeFCS
	if n < 0 || n > len(buf) {
		return ethernet.Frame{}, lneto.ErrShortBuffer
	}
	return ethernet.NewFrame(buf[:n])
}
