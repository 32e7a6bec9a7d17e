package enc28j60

import (
	"context"
	"encoding/binary"
	"log/slog"
)

// LevelTrace is the log level at which every bus transaction is logged.
const LevelTrace slog.Level = slog.LevelDebug - 2

func (d *Device) logenabled(level slog.Level) bool {
	return d.log != nil && d.log.Enabled(context.Background(), level)
}

func (d *Device) debug(msg string, attrs ...slog.Attr) {
	if d.logenabled(slog.LevelDebug) {
		d.log.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
	}
}

func (d *Device) logerr(msg string, attrs ...slog.Attr) {
	if d.logenabled(slog.LevelError) {
		d.log.LogAttrs(context.Background(), slog.LevelError, msg, attrs...)
	}
}

// slogMAC returns a slog.Attr for a hardware address packed into a uint64 without allocating a string.
func slogMAC(key string, addr *[6]byte) slog.Attr {
	var buf [8]byte
	copy(buf[2:], addr[:])
	return slog.Uint64(key, binary.BigEndian.Uint64(buf[:]))
}
