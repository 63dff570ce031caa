package testsupport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"lux/internal/ddc"
)

// FakeDisplay implements ddc.Display in memory and counts hardware accesses.
type FakeDisplay struct {
	id    string
	model string

	mu    sync.Mutex
	value uint16

	reads    atomic.Int64
	writes   atomic.Int64
	failRead atomic.Bool
	failWrit atomic.Bool
	closed   atomic.Bool
}

// NewFakeDisplay returns a display with the given identity and initial
// brightness value.
func NewFakeDisplay(id, model string, value uint16) *FakeDisplay {
	return &FakeDisplay{id: id, model: model, value: value}
}

func (d *FakeDisplay) ID() string    { return d.id }
func (d *FakeDisplay) Model() string { return d.model }

func (d *FakeDisplay) ReadVCP(code byte) (uint16, error) {
	d.reads.Add(1)
	if d.failRead.Load() {
		return 0, errors.New("fake read failure")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value, nil
}

func (d *FakeDisplay) WriteVCP(code byte, value uint16) error {
	d.writes.Add(1)
	if d.failWrit.Load() {
		return errors.New("fake write failure")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.value = value
	return nil
}

func (d *FakeDisplay) Close() error {
	d.closed.Store(true)
	return nil
}

// Value reports the stored brightness.
func (d *FakeDisplay) Value() uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

// SetValue overwrites the stored brightness without counting as a write.
func (d *FakeDisplay) SetValue(value uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.value = value
}

// Reads reports how many ReadVCP calls the display has served.
func (d *FakeDisplay) Reads() int64 { return d.reads.Load() }

// Writes reports how many WriteVCP calls the display has served.
func (d *FakeDisplay) Writes() int64 { return d.writes.Load() }

// Closed reports whether Close has been called.
func (d *FakeDisplay) Closed() bool { return d.closed.Load() }

// FailReads toggles read failure injection.
func (d *FakeDisplay) FailReads(fail bool) { d.failRead.Store(fail) }

// FailWrites toggles write failure injection.
func (d *FakeDisplay) FailWrites(fail bool) { d.failWrit.Store(fail) }

// FakeBackend implements ddc.Backend over a fixed set of fake displays.
type FakeBackend struct {
	mu       sync.Mutex
	displays []*FakeDisplay
	err      error
}

// NewFakeBackend returns a backend that enumerates the given displays.
func NewFakeBackend(displays ...*FakeDisplay) *FakeBackend {
	return &FakeBackend{displays: displays}
}

// SetDisplays replaces the enumeration result for subsequent calls.
func (b *FakeBackend) SetDisplays(displays ...*FakeDisplay) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.displays = displays
}

// SetError makes Enumerate fail until cleared with a nil error.
func (b *FakeBackend) SetError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

func (b *FakeBackend) Enumerate(ctx context.Context) ([]ddc.Display, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	out := make([]ddc.Display, len(b.displays))
	for i, d := range b.displays {
		out[i] = d
	}
	return out, nil
}
