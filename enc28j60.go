// Package enc28j60 provides a driver for the ENC28J60 stand-alone Ethernet controller.
//
// The ENC28J60 integrates a 10BASE-T MAC and PHY with 8KiB of packet buffer memory
// and is controlled exclusively through an SPI bus using seven instructions.
// Control registers are split into four banks selected through ECON1 and
// the PHY registers are reachable only indirectly through the MII management registers.
//
// A Device performs no internal locking. Callers sharing a Device between
// goroutines must serialize all calls with a single mutex.
package enc28j60

import (
	"log/slog"
	"time"

	"github.com/soypat/lneto"
	"github.com/soypat/lneto/phy"
	"tinygo.org/x/drivers"
)

// Device is an ENC28J60 attached to an SPI bus. Use Configure to initialize the device before use.
type Device struct {
	bus bus
	cfg Config
	phy phy.Device
	log *slog.Logger
	// rxNext is the buffer address of the next packet to be read, mirrors ERDPT.
	rxNext     uint16
	configured bool
}

// Configure resets the chip and brings it up into a running configuration
// using spi for bus transfers and cs to drive the active-low chip select line.
// It must be called before using any other Device methods and is not reentrant.
func (d *Device) Configure(spi drivers.SPI, cs func(level bool), cfg Config) (err error) {
	if spi == nil || cs == nil {
		return lneto.ErrInvalidConfig
	}
	cfg.setDefaults()
	err = cfg.Validate()
	if err != nil {
		return err
	}
	*d = Device{
		bus: bus{spi: spi, cs: cs, log: cfg.Logger},
		cfg: cfg,
		log: cfg.Logger,
	}
	err = d.phy.ConfigureAs22(d.MDIO(), 0)
	if err != nil {
		return err
	}
	cs(true)
	err = d.Reset()
	if err != nil {
		return err
	}
	err = d.initialize()
	if err != nil {
		d.logerr("enc28j60:configure", slog.String("err", err.Error()))
		return err
	}
	d.configured = true
	d.debug("enc28j60:configured",
		slogMAC("mac", &d.cfg.MAC),
		slog.Uint64("rxstart", uint64(cfg.RxStart)),
		slog.Uint64("rxend", uint64(cfg.RxEnd)),
		slog.String("filter", cfg.Filter.String()),
		slog.Bool("fdx", cfg.FullDuplex),
	)
	return nil
}

// Reset issues a system reset command and waits for the chip to settle. All registers
// return to their reset values; call Configure to bring the chip back up.
func (d *Device) Reset() error {
	d.configured = false
	err := d.bus.src()
	if err != nil {
		return err
	}
	time.Sleep(resetSettle)
	return nil
}

// initialize sequences the register writes of a running configuration.
func (d *Device) initialize() (err error) {
	cfg := &d.cfg
	// Receive ring buffer. Everything below RxStart is transmit space.
	err = d.WriteRegisterPair(ERXSTL, cfg.RxStart)
	if err != nil {
		return err
	}
	err = d.WriteRegisterPair(ERXNDL, cfg.RxEnd)
	if err != nil {
		return err
	}
	err = d.WriteRegisterPair(ERXRDPTL, cfg.RxStart)
	if err != nil {
		return err
	}
	err = d.WriteRegisterPair(ERDPTL, cfg.RxStart)
	if err != nil {
		return err
	}
	d.rxNext = cfg.RxStart

	err = d.WriteRegister(ERXFCON, uint8(cfg.Filter))
	if err != nil {
		return err
	}

	// MAC and PHY registers may not be touched before the oscillator start-up timer expires.
	err = poll("clock ready", cfg.ClockTimeout, func() (bool, error) {
		estat, err := d.ReadRegister(ESTAT)
		return estat&estatCLKRDY != 0, err
	})
	if err != nil {
		return err
	}

	var macon1, macon3 uint8 = macon1MARXEN, macon3PADCFG2 | macon3PADCFG1 | macon3PADCFG0 | macon3TXCRCEN
	var bbipg uint8 = 0x12
	var ipg uint16 = 0x0c12
	linkmode := phy.Link10HDX
	if cfg.FullDuplex {
		macon1 |= macon1TXPAUS | macon1RXPAUS
		macon3 |= macon3FULDPX
		bbipg = 0x15
		ipg = 0x0012
		linkmode = phy.Link10FDX
	}
	err = d.WriteRegister(MACON1, macon1)
	if err != nil {
		return err
	}
	err = d.WriteRegister(MACON3, macon3)
	if err != nil {
		return err
	}
	err = d.WriteRegister(MACON4, macon4DEFER)
	if err != nil {
		return err
	}
	err = d.WriteRegisterPair(MAMXFLL, cfg.MaxFrameLength)
	if err != nil {
		return err
	}
	err = d.WriteRegister(MABBIPG, bbipg)
	if err != nil {
		return err
	}
	err = d.WriteRegisterPair(MAIPGL, ipg)
	if err != nil {
		return err
	}
	// MAADR1 holds the first octet of the address.
	maadr := [6]Register{MAADR1, MAADR2, MAADR3, MAADR4, MAADR5, MAADR6}
	for i, reg := range maadr {
		err = d.WriteRegister(reg, cfg.MAC[i])
		if err != nil {
			return err
		}
	}

	// PHCON1 shares the clause 22 BMCR layout: PDPXMD is the duplex bit.
	err = d.phy.SetupForced(linkmode)
	if err != nil {
		return err
	}
	var phcon2 uint16 = phcon2HDLDIS
	if cfg.FullDuplex {
		phcon2 = 0
	}
	err = d.WritePHY(PHCON2, phcon2)
	if err != nil {
		return err
	}

	err = d.WriteRegisterPair(EWRPTL, txStart)
	if err != nil {
		return err
	}
	err = d.WriteRegisterPair(ETXSTL, txStart)
	if err != nil {
		return err
	}
	return d.WriteRegister(EIE, eiePKTIE)
}

// ReadRegister reads a control register from any bank. The bank is selected on
// every call regardless of the bank currently active.
func (d *Device) ReadRegister(r Register) (uint8, error) {
	err := d.selectBank(r)
	if err != nil {
		return 0, err
	}
	return d.bus.rcr(r.Addr(), r.IsMACMII())
}

// WriteRegister writes v to a control register of any bank. The bank is selected on
// every call regardless of the bank currently active.
func (d *Device) WriteRegister(r Register, v uint8) error {
	err := d.selectBank(r)
	if err != nil {
		return err
	}
	return d.bus.wcr(r.Addr(), v)
}

// selectBank clears ECON1.BSEL1:BSEL0 and then sets them to the bank of r.
func (d *Device) selectBank(r Register) error {
	if !r.IsValid() {
		return ErrInvalidRegister
	}
	err := d.bus.bfc(ECON1.Addr(), econ1BSEL1|econ1BSEL0)
	if err != nil {
		return err
	}
	return d.bus.bfs(ECON1.Addr(), r.Bank())
}

// ReadRegisterPair reads the 16-bit little-endian value held by register low
// and the register at the following address.
func (d *Device) ReadRegisterPair(low Register) (uint16, error) {
	high, ok := low.pairHigh()
	if !ok || !low.IsValid() {
		return 0, ErrInvalidRegister
	}
	lo, err := d.ReadRegister(low)
	if err != nil {
		return 0, err
	}
	hi, err := d.ReadRegister(high)
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

// WriteRegisterPair writes the low byte of v to register low and then the high byte to
// the register at the following address.
func (d *Device) WriteRegisterPair(low Register, v uint16) error {
	high, ok := low.pairHigh()
	if !ok || !low.IsValid() {
		return ErrInvalidRegister
	}
	err := d.WriteRegister(low, uint8(v))
	if err != nil {
		return err
	}
	return d.WriteRegister(high, uint8(v>>8))
}

// Revision returns the silicon revision from EREVID.
func (d *Device) Revision() (uint8, error) {
	return d.ReadRegister(EREVID)
}

// HardwareAddr returns the MAC address the device was configured with.
func (d *Device) HardwareAddr() [6]byte {
	return d.cfg.MAC
}

// LinkUp reports the real-time link status from PHSTAT2.
func (d *Device) LinkUp() (bool, error) {
	stat, err := d.ReadPHY(PHSTAT2)
	return stat&phstat2LSTAT != 0, err
}

// Probe checks the PHY identifier registers against the values of the ENC28J60.
// It is useful to detect wiring problems since the bus itself cannot report a missing chip.
func (d *Device) Probe() error {
	id1, err := d.phy.ID1()
	if err != nil {
		return err
	}
	id2, err := d.phy.ID2()
	if err != nil {
		return err
	}
	if id1 != phid1Expected || id2&0xfff0 != phid2Expected {
		d.logerr("enc28j60:probe", slog.Uint64("phid1", uint64(id1)), slog.Uint64("phid2", uint64(id2)))
		return errUnexpectedPHY
	}
	return nil
}

// PHY returns the clause 22 view of the internal PHY. PHCON1, PHSTAT1, PHID1 and PHID2
// follow the IEEE 802.3 layout; the chip does not implement autonegotiation.
func (d *Device) PHY() *phy.Device {
	return &d.phy
}
