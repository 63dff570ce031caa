package ddc

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// i2cSlaveIoctl selects the target slave address on an i2c-dev fd.
	i2cSlaveIoctl = 0x0703

	// ddcSlaveAddr is the 7-bit DDC/CI slave address of the display.
	ddcSlaveAddr = 0x37
	// edidSlaveAddr is the 7-bit address the EDID block is read from.
	edidSlaveAddr = 0x50

	// ddcDestAddr and ddcHostAddr are the 8-bit addresses used in DDC/CI
	// message checksums.
	ddcDestAddr = 0x6e
	ddcHostAddr = 0x51
	ddcReplyKey = 0x50

	opGetVCP      = 0x01
	opGetVCPReply = 0x02
	opSetVCP      = 0x03

	// ddcDelay is the minimum pause the DDC/CI spec requires between a
	// request and the matching reply read.
	ddcDelay = 40 * time.Millisecond
)

// I2CBackend enumerates displays by probing /dev/i2c-* buses for DDC/CI
// responders.
type I2CBackend struct {
	devices []string
}

// NewI2CBackend restricts probing to the given device nodes. An empty list
// probes every /dev/i2c-* bus present.
func NewI2CBackend(devices []string) *I2CBackend {
	return &I2CBackend{devices: append([]string(nil), devices...)}
}

// Enumerate probes the configured buses and returns one Display per bus that
// answers a brightness read.
func (b *I2CBackend) Enumerate(ctx context.Context) ([]Display, error) {
	devices := b.devices
	if len(devices) == 0 {
		matches, err := filepath.Glob("/dev/i2c-*")
		if err != nil {
			return nil, fmt.Errorf("glob i2c devices: %w", err)
		}
		sort.Strings(matches)
		devices = matches
	}

	var displays []Display
	for _, device := range devices {
		if err := ctx.Err(); err != nil {
			closeAll(displays)
			return nil, err
		}
		display, err := openI2CDisplay(device)
		if err != nil {
			continue
		}
		displays = append(displays, display)
	}
	return displays, nil
}

func closeAll(displays []Display) {
	for _, d := range displays {
		_ = d.Close()
	}
}

type i2cDisplay struct {
	fd    int
	path  string
	model string
}

// openI2CDisplay opens the bus and verifies a monitor answers a brightness
// read before handing the display out.
func openI2CDisplay(path string) (*i2cDisplay, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	d := &i2cDisplay{fd: fd, path: path}
	if _, err := d.ReadVCP(FeatureBrightness); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	d.model = readEDIDModel(fd)
	return d, nil
}

func (d *i2cDisplay) ID() string { return d.path }

func (d *i2cDisplay) Model() string { return d.model }

func (d *i2cDisplay) Close() error {
	return unix.Close(d.fd)
}

// ReadVCP issues a DDC/CI Get VCP Feature request and parses the reply.
func (d *i2cDisplay) ReadVCP(code byte) (uint16, error) {
	if err := d.send(opGetVCP, code); err != nil {
		return 0, fmt.Errorf("ddc read %s: %w", d.path, err)
	}
	time.Sleep(ddcDelay)

	buf := make([]byte, 12)
	if err := d.receive(buf); err != nil {
		return 0, fmt.Errorf("ddc read %s: %w", d.path, err)
	}
	// Reply layout: source, length, opcode, result, code, type, max hi/lo,
	// current hi/lo, checksum.
	if buf[2] != opGetVCPReply {
		return 0, fmt.Errorf("ddc read %s: unexpected opcode 0x%02x", d.path, buf[2])
	}
	if buf[3] != 0 {
		return 0, fmt.Errorf("ddc read %s: unsupported VCP code 0x%02x", d.path, code)
	}
	if buf[4] != code {
		return 0, fmt.Errorf("ddc read %s: reply for code 0x%02x, want 0x%02x", d.path, buf[4], code)
	}
	return uint16(buf[8])<<8 | uint16(buf[9]), nil
}

// WriteVCP issues a DDC/CI Set VCP Feature request.
func (d *i2cDisplay) WriteVCP(code byte, value uint16) error {
	if err := d.send(opSetVCP, code, byte(value>>8), byte(value)); err != nil {
		return fmt.Errorf("ddc write %s: %w", d.path, err)
	}
	// Displays need settle time before the next transaction.
	time.Sleep(ddcDelay)
	return nil
}

func (d *i2cDisplay) send(payload ...byte) error {
	if err := unix.IoctlSetInt(d.fd, i2cSlaveIoctl, ddcSlaveAddr); err != nil {
		return fmt.Errorf("select slave: %w", err)
	}
	msg := make([]byte, 0, len(payload)+3)
	msg = append(msg, ddcHostAddr, 0x80|byte(len(payload)))
	msg = append(msg, payload...)

	chk := byte(ddcDestAddr)
	for _, b := range msg {
		chk ^= b
	}
	msg = append(msg, chk)

	if _, err := unix.Write(d.fd, msg); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

func (d *i2cDisplay) receive(buf []byte) error {
	if err := unix.IoctlSetInt(d.fd, i2cSlaveIoctl, ddcSlaveAddr); err != nil {
		return fmt.Errorf("select slave: %w", err)
	}
	n, err := unix.Read(d.fd, buf)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if n < len(buf) {
		return fmt.Errorf("short reply: %d bytes", n)
	}
	if buf[0] != ddcDestAddr {
		return fmt.Errorf("unexpected source address 0x%02x", buf[0])
	}
	chk := byte(ddcReplyKey)
	for _, b := range buf[:len(buf)-1] {
		chk ^= b
	}
	if chk != buf[len(buf)-1] {
		return fmt.Errorf("checksum mismatch")
	}
	return nil
}

// readEDIDModel pulls the monitor name descriptor out of the 128-byte base
// EDID block. Best-effort; returns "" when the descriptor is absent.
func readEDIDModel(fd int) string {
	if err := unix.IoctlSetInt(fd, i2cSlaveIoctl, edidSlaveAddr); err != nil {
		return ""
	}
	// Set the read offset, then read the base block.
	if _, err := unix.Write(fd, []byte{0x00}); err != nil {
		return ""
	}
	edid := make([]byte, 128)
	if n, err := unix.Read(fd, edid); err != nil || n < 128 {
		return ""
	}
	// Four 18-byte descriptors start at offset 54; tag 0xFC is the name.
	for i := 54; i+18 <= 126; i += 18 {
		desc := edid[i : i+18]
		if desc[0] != 0 || desc[1] != 0 || desc[3] != 0xFC {
			continue
		}
		name := desc[5:18]
		for j, b := range name {
			if b == '\n' {
				name = name[:j]
				break
			}
		}
		return string(trimSpaces(name))
	}
	return ""
}

func trimSpaces(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && (b[start] == ' ' || b[start] == 0) {
		start++
	}
	for end > start && (b[end-1] == ' ' || b[end-1] == 0) {
		end--
	}
	return b[start:end]
}
