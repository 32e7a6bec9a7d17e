//go:build rp2040 || rp2350

package enc28j60

import (
	"errors"
	"machine"
	"math/bits"

	pio "github.com/tinygo-org/pio/rp2-pio"
	"github.com/tinygo-org/pio/rp2-pio/piolib"
)

// PicoConfig holds configuration for creating an ENC28J60 device on RP2040/RP2350
// driven by a PIO SPI state machine.
type PicoConfig struct {
	// PIO is the PIO peripheral to claim the SPI state machine from.
	// Use pio.PIO0 or pio.PIO1.
	PIO *pio.PIO
	// Baud is the SPI clock frequency. The ENC28J60 supports up to 20MHz.
	// Defaults to 8MHz.
	Baud uint32
	// SPI pins.
	SCK, SDO, SDI machine.Pin
	// CS is the active-low chip select pin.
	CS machine.Pin
	// DeviceConfig configures the ENC28J60 itself.
	DeviceConfig Config
}

// NewPicoENC28J60 creates and configures a Device for RP2040/RP2350.
func NewPicoENC28J60(cfg PicoConfig) (*Device, error) {
	const defaultBaud = 8_000_000
	spimsk := uint64(1)<<cfg.SCK | uint64(1)<<cfg.SDO | uint64(1)<<cfg.SDI
	if bits.OnesCount64(spimsk) != 3 || spimsk&(uint64(1)<<cfg.CS) != 0 {
		return nil, errors.New("aliased pins, check pin definitions")
	}
	if cfg.Baud == 0 {
		cfg.Baud = defaultBaud
	}
	sm, err := cfg.PIO.ClaimStateMachine()
	if err != nil {
		return nil, err
	}
	spi, err := piolib.NewSPI(sm, machine.SPIConfig{
		Frequency: cfg.Baud,
		SCK:       cfg.SCK,
		SDO:       cfg.SDO,
		SDI:       cfg.SDI,
		Mode:      0, // ENC28J60 supports mode 0,0 only.
	})
	if err != nil {
		return nil, err
	}
	cfg.CS.Configure(machine.PinConfig{Mode: machine.PinOutput})
	cfg.CS.High()

	var dev Device
	err = dev.Configure(spi, cfg.CS.Set, cfg.DeviceConfig)
	if err != nil {
		return nil, err
	}
	return &dev, nil
}
