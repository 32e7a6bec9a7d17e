package enc28j60

import (
	"github.com/soypat/lneto"
	"github.com/soypat/lneto/phy"
)

// ReadPHY reads a PHY register through the MII management interface:
// the address is written to MIREGADR, a read is requested through MICMD.MIIRD,
// MISTAT.BUSY is polled until clear and the result is read from MIRDH:MIRDL.
// The busy-wait is bounded by Config.PHYTimeout.
func (d *Device) ReadPHY(reg PHYRegister) (uint16, error) {
	if !reg.IsValid() {
		return 0, ErrInvalidRegister
	}
	err := d.WriteRegister(MIREGADR, uint8(reg))
	if err != nil {
		return 0, err
	}
	err = d.WriteRegister(MICMD, micmdMIIRD)
	if err != nil {
		return 0, err
	}
	err = d.waitPHY()
	if err != nil {
		return 0, err
	}
	err = d.WriteRegister(MICMD, 0)
	if err != nil {
		return 0, err
	}
	return d.ReadRegisterPair(MIRDL)
}

// WritePHY writes v to a PHY register. Writing MIWRH starts the transaction inside
// the chip; WritePHY returns once MISTAT.BUSY clears or Config.PHYTimeout elapses.
func (d *Device) WritePHY(reg PHYRegister, v uint16) error {
	if !reg.IsValid() {
		return ErrInvalidRegister
	}
	err := d.WriteRegister(MIREGADR, uint8(reg))
	if err != nil {
		return err
	}
	err = d.WriteRegisterPair(MIWRL, v)
	if err != nil {
		return err
	}
	return d.waitPHY()
}

func (d *Device) waitPHY() error {
	return poll("PHY busy", d.cfg.PHYTimeout, func() (bool, error) {
		stat, err := d.ReadRegister(MISTAT)
		return stat&mistatBUSY == 0, err
	})
}

// MDIO returns the PHY indirect access of the device as a clause 22 MDIO bus.
// The chip has a single PHY so the PHY address is ignored.
func (d *Device) MDIO() phy.MDIOBus {
	return (*mdio)(d)
}

type mdio Device

func (m *mdio) Read(phyAddr, devAddr uint8, regAddr uint16) (uint16, error) {
	if devAddr != 0 || regAddr > regAddrMask {
		return 0, lneto.ErrInvalidAddr
	}
	return (*Device)(m).ReadPHY(PHYRegister(regAddr))
}

func (m *mdio) Write(phyAddr, devAddr uint8, regAddr, value uint16) error {
	if devAddr != 0 || regAddr > regAddrMask {
		return lneto.ErrInvalidAddr
	}
	return (*Device)(m).WritePHY(PHYRegister(regAddr), value)
}
