package enc28j60

import (
	"log/slog"
	"time"

	"github.com/soypat/lneto"
)

const (
	// bufferEnd is the last address of the 8KiB packet buffer.
	bufferEnd = 0x1fff
	// txStart is where frames are staged. Everything below Config.RxStart is transmit space.
	txStart = 0x0000

	txControlSize      = 1
	txStatusVectorSize = 7

	defaultRxStart        = 1530
	defaultRxEnd          = bufferEnd
	defaultMaxFrameLength = 1518
	defaultFrameLength    = 68
	defaultTimeout        = time.Second
)

// FilterMode selects which frames the receive filter accepts. Modes are mutually
// exclusive; the value is written verbatim to ERXFCON.
type FilterMode uint8

const (
	// FilterAcceptAll disables all receive filters.
	FilterAcceptAll FilterMode = 0
	// FilterUnicastBroadcast accepts frames addressed to the local MAC or to broadcast.
	FilterUnicastBroadcast FilterMode = erxfconUCEN | erxfconBCEN
	// FilterMulticast accepts multicast frames only.
	FilterMulticast FilterMode = erxfconMCEN
)

func (f FilterMode) String() string {
	switch f {
	case FilterAcceptAll:
		return "accept-all"
	case FilterUnicastBroadcast:
		return "unicast-broadcast"
	case FilterMulticast:
		return "multicast"
	}
	return "invalid"
}

// Config holds the configuration parameters for initializing an ENC28J60 device.
// Zero valued fields take the defaults listed on each field.
type Config struct {
	// MAC is the local hardware address. It is programmed into MAADR1..MAADR6 and
	// used as the source address by [Device.SendPacket].
	MAC [6]byte
	// RxStart and RxEnd are the inclusive bounds of the receive ring buffer.
	// Memory below RxStart is used to stage transmitted frames.
	// Default to 1530 and 8191, leaving room for one maximum length frame to transmit.
	RxStart, RxEnd uint16
	// MaxFrameLength is programmed into MAMXFL. Defaults to 1518.
	MaxFrameLength uint16
	// FrameLength is the length/type field written by [Device.SendPacket]. Defaults to 68.
	FrameLength uint16
	// Filter selects the receive filter mode. Defaults to [FilterAcceptAll].
	Filter FilterMode
	// FullDuplex configures MAC and PHY for full duplex operation. The link
	// partner must be forced to full duplex as well since the chip does not autonegotiate.
	FullDuplex bool
	// ClockTimeout bounds the wait for ESTAT.CLKRDY after reset. Defaults to 1s.
	ClockTimeout time.Duration
	// PHYTimeout bounds the wait for MISTAT.BUSY to clear. Defaults to 1s.
	PHYTimeout time.Duration
	// RxTimeout bounds the wait for a packet in [Device.ReceivePacket]. Defaults to 1s.
	RxTimeout time.Duration
	// TxTimeout bounds the wait for transmission completion. Defaults to 1s.
	TxTimeout time.Duration
	// Logger receives errors and, at [LevelTrace], every bus transaction. May be nil.
	Logger *slog.Logger
}

func (cfg *Config) setDefaults() {
	if cfg.RxStart == 0 && cfg.RxEnd == 0 {
		cfg.RxStart = defaultRxStart
		cfg.RxEnd = defaultRxEnd
	}
	if cfg.MaxFrameLength == 0 {
		cfg.MaxFrameLength = defaultMaxFrameLength
	}
	if cfg.FrameLength == 0 {
		cfg.FrameLength = defaultFrameLength
	}
	setDefaultDuration(&cfg.ClockTimeout)
	setDefaultDuration(&cfg.PHYTimeout)
	setDefaultDuration(&cfg.RxTimeout)
	setDefaultDuration(&cfg.TxTimeout)
}

func setDefaultDuration(d *time.Duration) {
	if *d <= 0 {
		*d = defaultTimeout
	}
}

// Validate checks that the buffer layout fits the chip and leaves room to transmit
// one maximum length frame below the receive ring.
func (cfg *Config) Validate() error {
	txNeeded := txControlSize + int(cfg.MaxFrameLength) + txStatusVectorSize
	switch {
	case cfg.RxEnd > bufferEnd || cfg.RxStart >= cfg.RxEnd:
		return lneto.ErrInvalidConfig
	case int(cfg.RxStart) < txStart+txNeeded:
		return lneto.ErrInvalidConfig
	}
	switch cfg.Filter {
	case FilterAcceptAll, FilterUnicastBroadcast, FilterMulticast:
		return nil
	}
	return lneto.ErrInvalidConfig
}
