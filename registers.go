package enc28j60

// Register identifies a control register of the chip. It packs three fields in one byte:
//
//	000xxxxx  5-bit address sent on the bus
//	0xx00000  bank, selected through ECON1.BSEL1:BSEL0
//	x0000000  MAC/MII flag: reads of these registers clock out a dummy byte first
//
// Use the named constants or [MakeRegister] to obtain a valid Register.
type Register uint8

const (
	regAddrMask   = 0x1f
	regBankMask   = 0x60
	regBankShift  = 5
	regMACMIIFlag = 0x80

	bank0 Register = 0x00
	bank1 Register = 0x20
	bank2 Register = 0x40
	bank3 Register = 0x60

	// Registers at 0x1B..0x1F are mapped into all four banks.
	commonRegStart = 0x1b
)

// MakeRegister returns the Register at addr in the given bank. It fails with
// [ErrInvalidRegister] if bank or address are out of range, if the combination is
// unimplemented or reserved on the chip, or if macmii does not match the register class.
func MakeRegister(bank, addr uint8, macmii bool) (Register, error) {
	if bank > 3 || addr > regAddrMask {
		return 0, ErrInvalidRegister
	}
	r := Register(bank<<regBankShift | addr)
	if macmii {
		r |= regMACMIIFlag
	}
	if !r.IsValid() {
		return 0, ErrInvalidRegister
	}
	return r, nil
}

// Addr returns the 5-bit bus address of the register.
func (r Register) Addr() uint8 { return uint8(r) & regAddrMask }

// Bank returns the bank (0..3) the register lives in.
func (r Register) Bank() uint8 { return (uint8(r) & regBankMask) >> regBankShift }

// IsMACMII reports whether the register belongs to the MAC/MII class.
func (r Register) IsMACMII() bool { return r&regMACMIIFlag != 0 }

// IsCommon reports whether the register is reachable regardless of the selected bank.
func (r Register) IsCommon() bool { return r.Addr() >= commonRegStart }

// IsValid reports whether r names an implemented register with a matching MAC/MII flag.
func (r Register) IsValid() bool {
	bank := r.Bank()
	bit := uint32(1) << r.Addr()
	if validRegs[bank]&bit == 0 {
		return false
	}
	return (macmiiRegs[bank]&bit != 0) == r.IsMACMII()
}

// pairHigh returns the high byte register of a register pair whose low byte is r.
func (r Register) pairHigh() (Register, bool) {
	if r.Addr() == regAddrMask {
		return 0, false
	}
	hi := r + 1
	return hi, hi.IsValid()
}

const commonRegs uint32 = 1<<EIE | 1<<EIR | 1<<ESTAT | 1<<ECON2 | 1<<ECON1

// validRegs and macmiiRegs hold one bit per address for each bank.
var validRegs = [4]uint32{
	0: 0x00ff_ffff | commonRegs,
	1: 0x0003_ffff | 1<<0x14 | 1<<0x15 | 1<<0x18 | 1<<0x19 | commonRegs,
	2: macmiiRegs[2] | commonRegs,
	3: macmiiRegs[3] | 1<<0x06 | 1<<0x07 | 1<<0x08 | 1<<0x09 | 1<<0x12 | 1<<0x15 | 1<<0x17 | 1<<0x18 | 1<<0x19 | commonRegs,
}

var macmiiRegs = [4]uint32{
	2: 1<<0x00 | 1<<0x02 | 1<<0x03 | 1<<0x04 | 1<<0x06 | 1<<0x07 | 1<<0x08 | 1<<0x09 |
		1<<0x0a | 1<<0x0b | 1<<0x12 | 1<<0x14 | 1<<0x16 | 1<<0x17 | 1<<0x18 | 1<<0x19,
	3: 1<<0x00 | 1<<0x01 | 1<<0x02 | 1<<0x03 | 1<<0x04 | 1<<0x05 | 1<<0x0a,
}

// Bank 0.
const (
	ERDPTL   = bank0 | 0x00
	ERDPTH   = bank0 | 0x01
	EWRPTL   = bank0 | 0x02
	EWRPTH   = bank0 | 0x03
	ETXSTL   = bank0 | 0x04
	ETXSTH   = bank0 | 0x05
	ETXNDL   = bank0 | 0x06
	ETXNDH   = bank0 | 0x07
	ERXSTL   = bank0 | 0x08
	ERXSTH   = bank0 | 0x09
	ERXNDL   = bank0 | 0x0a
	ERXNDH   = bank0 | 0x0b
	ERXRDPTL = bank0 | 0x0c
	ERXRDPTH = bank0 | 0x0d
	ERXWRPTL = bank0 | 0x0e
	ERXWRPTH = bank0 | 0x0f
	EDMASTL  = bank0 | 0x10
	EDMASTH  = bank0 | 0x11
	EDMANDL  = bank0 | 0x12
	EDMANDH  = bank0 | 0x13
	EDMADSTL = bank0 | 0x14
	EDMADSTH = bank0 | 0x15
	EDMACSL  = bank0 | 0x16
	EDMACSH  = bank0 | 0x17
)

// Common registers, present in every bank.
const (
	EIE   = bank0 | 0x1b
	EIR   = bank0 | 0x1c
	ESTAT = bank0 | 0x1d
	ECON2 = bank0 | 0x1e
	ECON1 = bank0 | 0x1f
)

// Bank 1.
const (
	EHT0    = bank1 | 0x00
	EHT1    = bank1 | 0x01
	EHT2    = bank1 | 0x02
	EHT3    = bank1 | 0x03
	EHT4    = bank1 | 0x04
	EHT5    = bank1 | 0x05
	EHT6    = bank1 | 0x06
	EHT7    = bank1 | 0x07
	EPMM0   = bank1 | 0x08
	EPMM1   = bank1 | 0x09
	EPMM2   = bank1 | 0x0a
	EPMM3   = bank1 | 0x0b
	EPMM4   = bank1 | 0x0c
	EPMM5   = bank1 | 0x0d
	EPMM6   = bank1 | 0x0e
	EPMM7   = bank1 | 0x0f
	EPMCSL  = bank1 | 0x10
	EPMCSH  = bank1 | 0x11
	EPMOL   = bank1 | 0x14
	EPMOH   = bank1 | 0x15
	ERXFCON = bank1 | 0x18
	EPKTCNT = bank1 | 0x19
)

// Bank 2. All MAC/MII registers.
const (
	MACON1   = bank2 | 0x00 | regMACMIIFlag
	MACON3   = bank2 | 0x02 | regMACMIIFlag
	MACON4   = bank2 | 0x03 | regMACMIIFlag
	MABBIPG  = bank2 | 0x04 | regMACMIIFlag
	MAIPGL   = bank2 | 0x06 | regMACMIIFlag
	MAIPGH   = bank2 | 0x07 | regMACMIIFlag
	MACLCON1 = bank2 | 0x08 | regMACMIIFlag
	MACLCON2 = bank2 | 0x09 | regMACMIIFlag
	MAMXFLL  = bank2 | 0x0a | regMACMIIFlag
	MAMXFLH  = bank2 | 0x0b | regMACMIIFlag
	MICMD    = bank2 | 0x12 | regMACMIIFlag
	MIREGADR = bank2 | 0x14 | regMACMIIFlag
	MIWRL    = bank2 | 0x16 | regMACMIIFlag
	MIWRH    = bank2 | 0x17 | regMACMIIFlag
	MIRDL    = bank2 | 0x18 | regMACMIIFlag
	MIRDH    = bank2 | 0x19 | regMACMIIFlag
)

// Bank 3. Note the MAC address registers are not laid out in order.
const (
	MAADR5  = bank3 | 0x00 | regMACMIIFlag
	MAADR6  = bank3 | 0x01 | regMACMIIFlag
	MAADR3  = bank3 | 0x02 | regMACMIIFlag
	MAADR4  = bank3 | 0x03 | regMACMIIFlag
	MAADR1  = bank3 | 0x04 | regMACMIIFlag
	MAADR2  = bank3 | 0x05 | regMACMIIFlag
	EBSTSD  = bank3 | 0x06
	EBSTCON = bank3 | 0x07
	EBSTCSL = bank3 | 0x08
	EBSTCSH = bank3 | 0x09
	MISTAT  = bank3 | 0x0a | regMACMIIFlag
	EREVID  = bank3 | 0x12
	ECOCON  = bank3 | 0x15
	EFLOCON = bank3 | 0x17
	EPAUSL  = bank3 | 0x18
	EPAUSH  = bank3 | 0x19
)

// Register bits.
const (
	econ1BSEL0 = 0x01
	econ1BSEL1 = 0x02
	econ1RXEN  = 0x04
	econ1TXRTS = 0x08
	econ1TXRST = 0x80

	econ2PKTDEC  = 0x40
	econ2AUTOINC = 0x80

	estatCLKRDY = 0x01
	estatTXABRT = 0x02
	estatRXBUSY = 0x04

	eiePKTIE = 0x40
	eieTXIE  = 0x08

	eirRXERIF = 0x01
	eirTXERIF = 0x02
	eirTXIF   = 0x08
	eirPKTIF  = 0x40

	erxfconBCEN = 0x01
	erxfconMCEN = 0x02
	erxfconUCEN = 0x80

	micmdMIIRD = 0x01

	mistatBUSY = 0x01

	macon1MARXEN = 0x01
	macon1RXPAUS = 0x04
	macon1TXPAUS = 0x08

	macon3FULDPX  = 0x01
	macon3TXCRCEN = 0x10
	macon3PADCFG0 = 0x20
	macon3PADCFG1 = 0x40
	macon3PADCFG2 = 0x80

	macon4DEFER = 0x40
)

// PHYRegister is the address of a PHY register, reachable only through the MII
// management registers. See [Device.ReadPHY].
type PHYRegister uint8

const (
	PHCON1  PHYRegister = 0x00
	PHSTAT1 PHYRegister = 0x01
	PHID1   PHYRegister = 0x02
	PHID2   PHYRegister = 0x03
	PHCON2  PHYRegister = 0x10
	PHSTAT2 PHYRegister = 0x11
	PHIE    PHYRegister = 0x12
	PHIR    PHYRegister = 0x13
	PHLCON  PHYRegister = 0x14
)

// IsValid reports whether the PHY implements register p.
func (p PHYRegister) IsValid() bool {
	return p <= PHID2 || (p >= PHCON2 && p <= PHLCON)
}

const (
	phcon2HDLDIS  = 0x0100
	phstat2LSTAT  = 0x0400
	phid1Expected = 0x0083
	phid2Expected = 0x1400 // Low nibble holds the PHY revision.
)
