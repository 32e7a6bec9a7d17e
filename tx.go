package enc28j60

import (
	"encoding/binary"
	"log/slog"
)

// txControlNoOverride is the per-packet control byte telling the MAC to use the
// MACON3 padding, CRC and huge frame settings.
const txControlNoOverride = 0x00

// SendPacket writes an Ethernet frame into transmit buffer memory at the current
// write pointer. It issues exactly five buffer writes: the per-packet control byte,
// dst, the configured source MAC, the configured length/type field (big endian)
// and payload.
//
// SendPacket neither positions the write pointer nor starts transmission.
// Call [Device.PrepareTransmit] before and [Device.StartTransmit] after.
func (d *Device) SendPacket(dst [6]byte, payload []byte) (err error) {
	var ctl = [txControlSize]byte{txControlNoOverride}
	var lenType [2]byte
	binary.BigEndian.PutUint16(lenType[:], d.cfg.FrameLength)
	err = d.bus.wbm(ctl[:])
	if err != nil {
		return err
	}
	err = d.bus.wbm(dst[:])
	if err != nil {
		return err
	}
	err = d.bus.wbm(d.cfg.MAC[:])
	if err != nil {
		return err
	}
	err = d.bus.wbm(lenType[:])
	if err != nil {
		return err
	}
	return d.bus.wbm(payload)
}

// PrepareTransmit points EWRPT and ETXST at the start of the transmit area.
func (d *Device) PrepareTransmit() error {
	err := d.WriteRegisterPair(EWRPTL, txStart)
	if err != nil {
		return err
	}
	return d.WriteRegisterPair(ETXSTL, txStart)
}

// StartTransmit sets ETXND for a frame of frameLen bytes (excluding the control byte)
// staged at the transmit start and requests transmission by setting ECON1.TXRTS.
// The transmit logic is reset first so a previous abort cannot stall the request.
func (d *Device) StartTransmit(frameLen uint16) error {
	if frameLen == 0 || frameLen > d.cfg.MaxFrameLength {
		return errFrameTooLong
	}
	// Rev B errata: the transmit logic may stall after an error; reset it before each frame.
	err := d.bus.bfs(ECON1.Addr(), econ1TXRST)
	if err != nil {
		return err
	}
	err = d.bus.bfc(ECON1.Addr(), econ1TXRST)
	if err != nil {
		return err
	}
	// ETXND points at the last byte of the frame; the control byte precedes it.
	err = d.WriteRegisterPair(ETXNDL, txStart+frameLen)
	if err != nil {
		return err
	}
	err = d.bus.bfc(EIR.Addr(), eirTXIF|eirTXERIF)
	if err != nil {
		return err
	}
	return d.bus.bfs(ECON1.Addr(), econ1TXRTS)
}

// SendFrame stages a complete Ethernet frame (destination address through payload,
// FCS appended by the MAC) and starts its transmission. It does not wait for completion;
// see [Device.WaitTransmit].
func (d *Device) SendFrame(frame []byte) (err error) {
	if !d.configured {
		return errNotConfigured
	} else if len(frame) == 0 || len(frame) > int(d.cfg.MaxFrameLength) {
		return errFrameTooLong
	}
	err = d.PrepareTransmit()
	if err != nil {
		return err
	}
	var ctl = [txControlSize]byte{txControlNoOverride}
	err = d.bus.wbm(ctl[:])
	if err != nil {
		return err
	}
	err = d.bus.wbm(frame)
	if err != nil {
		return err
	}
	return d.StartTransmit(uint16(len(frame)))
}

// IsSending returns true while ECON1.TXRTS is set.
func (d *Device) IsSending() (bool, error) {
	econ1, err := d.ReadRegister(ECON1)
	return econ1&econ1TXRTS != 0, err
}

// WaitTransmit waits until the current transmission completes or Config.TxTimeout
// elapses. The transmit status vector written by the chip after the frame is returned.
// If the chip aborted the transmission [ErrTransmitAborted] is returned alongside the status.
func (d *Device) WaitTransmit() (TxStatus, error) {
	var status TxStatus
	var eir uint8
	err := poll("transmit", d.cfg.TxTimeout, func() (bool, error) {
		sending, err := d.IsSending()
		if err != nil {
			return false, err
		}
		eir, err = d.ReadRegister(EIR)
		return !sending || eir&(eirTXIF|eirTXERIF) != 0, err
	})
	if err != nil {
		return status, err
	}
	if eir&eirTXERIF != 0 {
		// Rev B errata: TXRTS may remain set after a transmit error.
		err = d.bus.bfc(ECON1.Addr(), econ1TXRTS)
		if err != nil {
			return status, err
		}
	}
	estat, err := d.ReadRegister(ESTAT)
	if err != nil {
		return status, err
	}
	err = d.readTxStatus(&status)
	if err != nil {
		return status, err
	}
	if estat&estatTXABRT != 0 || eir&eirTXERIF != 0 {
		d.logerr("enc28j60:tx-abort",
			slog.Uint64("collisions", uint64(status.Collisions())),
			slog.Bool("late-collision", status.LateCollision()),
			slog.Bool("underrun", status.Underrun()),
		)
		return status, ErrTransmitAborted
	}
	return status, nil
}

// readTxStatus reads the status vector stored after ETXND. ERDPT is shared with the
// receive path so it is restored to the next packet afterwards.
func (d *Device) readTxStatus(status *TxStatus) error {
	txnd, err := d.ReadRegisterPair(ETXNDL)
	if err != nil {
		return err
	}
	err = d.WriteRegisterPair(ERDPTL, txnd+1)
	if err != nil {
		return err
	}
	err = d.bus.rbm(status[:])
	if err != nil {
		return err
	}
	return d.WriteRegisterPair(ERDPTL, d.rxNext)
}

// TxStatus is the 7-byte transmit status vector. See datasheet table 7-1.
type TxStatus [txStatusVectorSize]byte

// ByteCount is the total number of bytes in the frame, not counting collided bytes.
func (s TxStatus) ByteCount() uint16 { return binary.LittleEndian.Uint16(s[0:2]) }

// Collisions is the number of collisions the frame encountered.
func (s TxStatus) Collisions() uint8 { return s[2] & 0x0f }

// CRCError reports the attached CRC did not match the internally generated one.
func (s TxStatus) CRCError() bool { return s[2]&(1<<4) != 0 }

// Done reports the frame was transmitted successfully.
func (s TxStatus) Done() bool { return s[2]&(1<<7) != 0 }

// Multicast reports the destination address was a multicast address.
func (s TxStatus) Multicast() bool { return s[3]&(1<<0) != 0 }

// Broadcast reports the destination address was the broadcast address.
func (s TxStatus) Broadcast() bool { return s[3]&(1<<1) != 0 }

// ExcessiveCollision reports the frame was aborted after 16 collisions.
func (s TxStatus) ExcessiveCollision() bool { return s[3]&(1<<4) != 0 }

// LateCollision reports a collision after the collision window (MACLCON2).
func (s TxStatus) LateCollision() bool { return s[3]&(1<<5) != 0 }

// Giant reports the frame byte count was greater than MAMXFL.
func (s TxStatus) Giant() bool { return s[3]&(1<<6) != 0 }

// Underrun reports the frame was aborted due to a buffer underrun.
func (s TxStatus) Underrun() bool { return s[3]&(1<<7) != 0 }

// WireBytes is the total number of bytes transmitted on the wire including collisions.
func (s TxStatus) WireBytes() uint16 { return binary.LittleEndian.Uint16(s[4:6]) }
