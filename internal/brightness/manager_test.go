package brightness_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lux/internal/brightness"
	"lux/internal/testsupport"
)

func newManager(t *testing.T, backend *testsupport.FakeBackend, opts brightness.Options) *brightness.Manager {
	t.Helper()
	manager, err := brightness.New(context.Background(), backend, opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestNewFailsWithoutDisplays(t *testing.T) {
	backend := testsupport.NewFakeBackend()
	_, err := brightness.New(context.Background(), backend, brightness.Options{})
	if !errors.Is(err, brightness.ErrNoDisplays) {
		t.Fatalf("expected ErrNoDisplays, got %v", err)
	}
}

func TestGetClampsHardwareValuesAboveMax(t *testing.T) {
	display := testsupport.NewFakeDisplay("i2c-1", "FAKE-1", 150)
	manager := newManager(t, testsupport.NewFakeBackend(display), brightness.Options{})

	value, err := manager.Get(context.Background())
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if value != 100 {
		t.Fatalf("expected clamp to 100, got %d", value)
	}
}

func TestGetServesCacheInsideReadCooldown(t *testing.T) {
	display := testsupport.NewFakeDisplay("i2c-1", "FAKE-1", 40)
	manager := newManager(t, testsupport.NewFakeBackend(display), brightness.Options{
		ReadCooldown:  time.Minute,
		WriteCooldown: time.Minute,
	})

	for i := 0; i < 5; i++ {
		value, err := manager.Get(context.Background())
		if err != nil {
			t.Fatalf("Get %d returned error: %v", i, err)
		}
		if value != 40 {
			t.Fatalf("Get %d: expected 40, got %d", i, value)
		}
	}
	if got := display.Reads(); got != 1 {
		t.Fatalf("expected exactly one hardware read, got %d", got)
	}
}

func TestGetReadsAgainAfterCooldownExpires(t *testing.T) {
	display := testsupport.NewFakeDisplay("i2c-1", "FAKE-1", 40)
	manager := newManager(t, testsupport.NewFakeBackend(display), brightness.Options{
		ReadCooldown:  time.Nanosecond,
		WriteCooldown: time.Nanosecond,
	})

	if _, err := manager.Get(context.Background()); err != nil {
		t.Fatalf("first Get returned error: %v", err)
	}
	display.SetValue(70)
	time.Sleep(time.Millisecond)

	value, err := manager.Get(context.Background())
	if err != nil {
		t.Fatalf("second Get returned error: %v", err)
	}
	if value != 70 {
		t.Fatalf("expected refreshed value 70, got %d", value)
	}
	if got := display.Reads(); got != 2 {
		t.Fatalf("expected two hardware reads, got %d", got)
	}
}

func TestSetClampsInput(t *testing.T) {
	display := testsupport.NewFakeDisplay("i2c-1", "FAKE-1", 40)
	manager := newManager(t, testsupport.NewFakeBackend(display), brightness.Options{
		ReadCooldown:  time.Nanosecond,
		WriteCooldown: time.Nanosecond,
	})

	value, err := manager.Set(context.Background(), 150)
	if err != nil {
		t.Fatalf("Set 150 returned error: %v", err)
	}
	if value != 100 {
		t.Fatalf("expected clamp to 100, got %d", value)
	}
	if got := display.Value(); got != 100 {
		t.Fatalf("expected hardware at 100, got %d", got)
	}

	time.Sleep(time.Millisecond)
	value, err = manager.Set(context.Background(), -5)
	if err != nil {
		t.Fatalf("Set -5 returned error: %v", err)
	}
	if value != 0 {
		t.Fatalf("expected clamp to 0, got %d", value)
	}
	if got := display.Value(); got != 0 {
		t.Fatalf("expected hardware at 0, got %d", got)
	}
}

func TestSetEchoesWithoutHardwareInsideWriteCooldown(t *testing.T) {
	display := testsupport.NewFakeDisplay("i2c-1", "FAKE-1", 40)
	manager := newManager(t, testsupport.NewFakeBackend(display), brightness.Options{
		ReadCooldown:  time.Minute,
		WriteCooldown: time.Minute,
	})

	if _, err := manager.Set(context.Background(), 60); err != nil {
		t.Fatalf("first Set returned error: %v", err)
	}
	if got := display.Writes(); got != 1 {
		t.Fatalf("expected one write, got %d", got)
	}

	value, err := manager.Set(context.Background(), 130)
	if err != nil {
		t.Fatalf("suppressed Set returned error: %v", err)
	}
	if value != 100 {
		t.Fatalf("expected echoed clamped value 100, got %d", value)
	}
	if got := display.Writes(); got != 1 {
		t.Fatalf("suppressed set must not touch hardware, writes=%d", got)
	}
	if got := manager.Value(); got != 60 {
		t.Fatalf("suppressed set must not update the cache, got %d", got)
	}
	if got := display.Value(); got != 60 {
		t.Fatalf("hardware changed during suppressed set: %d", got)
	}
}

func TestSetFansOutToAllDisplaysDespiteFailure(t *testing.T) {
	first := testsupport.NewFakeDisplay("i2c-1", "FAKE-1", 40)
	second := testsupport.NewFakeDisplay("i2c-2", "FAKE-2", 40)
	third := testsupport.NewFakeDisplay("i2c-3", "FAKE-3", 40)
	second.FailWrites(true)

	manager := newManager(t, testsupport.NewFakeBackend(first, second, third), brightness.Options{
		ReadCooldown:  time.Nanosecond,
		WriteCooldown: time.Nanosecond,
	})

	value, err := manager.Set(context.Background(), 75)
	if err != nil {
		t.Fatalf("Set returned error despite best-effort contract: %v", err)
	}
	if value != 75 {
		t.Fatalf("expected 75, got %d", value)
	}
	for _, d := range []*testsupport.FakeDisplay{first, second, third} {
		if got := d.Writes(); got != 1 {
			t.Fatalf("display %s: expected one write attempt, got %d", d.ID(), got)
		}
	}
	if got := first.Value(); got != 75 {
		t.Fatalf("first display not updated: %d", got)
	}
	if got := second.Value(); got != 40 {
		t.Fatalf("failing display should keep old value, got %d", got)
	}
	if got := third.Value(); got != 75 {
		t.Fatalf("third display not updated: %d", got)
	}
}

func TestAdjustSaturates(t *testing.T) {
	display := testsupport.NewFakeDisplay("i2c-1", "FAKE-1", 50)
	manager := newManager(t, testsupport.NewFakeBackend(display), brightness.Options{
		ReadCooldown:  time.Nanosecond,
		WriteCooldown: time.Nanosecond,
	})

	value, err := manager.Adjust(context.Background(), 60000)
	if err != nil {
		t.Fatalf("Adjust +60000 returned error: %v", err)
	}
	if value != 100 {
		t.Fatalf("expected saturation at 100, got %d", value)
	}

	time.Sleep(time.Millisecond)
	value, err = manager.Adjust(context.Background(), -60000)
	if err != nil {
		t.Fatalf("Adjust -60000 returned error: %v", err)
	}
	if value != 0 {
		t.Fatalf("expected saturation at 0, got %d", value)
	}
}

func TestAdjustUsesCachedValueInsideReadCooldown(t *testing.T) {
	display := testsupport.NewFakeDisplay("i2c-1", "FAKE-1", 40)
	manager := newManager(t, testsupport.NewFakeBackend(display), brightness.Options{
		ReadCooldown:  time.Minute,
		WriteCooldown: time.Nanosecond,
	})

	if _, err := manager.Get(context.Background()); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	display.SetValue(90)

	time.Sleep(time.Millisecond)
	value, err := manager.Adjust(context.Background(), 5)
	if err != nil {
		t.Fatalf("Adjust returned error: %v", err)
	}
	if value != 45 {
		t.Fatalf("expected adjust from cached 40 to 45, got %d", value)
	}
	if got := display.Reads(); got != 1 {
		t.Fatalf("adjust inside read cooldown must not re-read, reads=%d", got)
	}
}

func TestOnApplyReportsPreviousAndAppliedValues(t *testing.T) {
	display := testsupport.NewFakeDisplay("i2c-1", "FAKE-1", 40)
	type change struct{ previous, value int }
	applied := make(chan change, 1)

	manager := newManager(t, testsupport.NewFakeBackend(display), brightness.Options{
		ReadCooldown:  time.Minute,
		WriteCooldown: time.Minute,
		OnApply: func(previous, value int) {
			applied <- change{previous, value}
		},
	})

	if _, err := manager.Get(context.Background()); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if _, err := manager.Set(context.Background(), 80); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	select {
	case got := <-applied:
		if got.previous != 40 || got.value != 80 {
			t.Fatalf("unexpected OnApply values: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("OnApply was not invoked")
	}
}

func TestRefreshSwapsHandlesAndKeepsCache(t *testing.T) {
	oldDisplay := testsupport.NewFakeDisplay("i2c-1", "FAKE-1", 40)
	backend := testsupport.NewFakeBackend(oldDisplay)
	manager := newManager(t, backend, brightness.Options{
		ReadCooldown:  time.Minute,
		WriteCooldown: time.Minute,
	})

	if _, err := manager.Get(context.Background()); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	newDisplay := testsupport.NewFakeDisplay("i2c-7", "FAKE-7", 10)
	backend.SetDisplays(newDisplay)
	if err := manager.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}

	if !oldDisplay.Closed() {
		t.Fatal("expected old display handle to be closed")
	}
	ids := manager.DisplayIDs()
	if len(ids) != 1 || ids[0] != "i2c-7" {
		t.Fatalf("unexpected display ids after refresh: %v", ids)
	}
	if got := manager.Value(); got != 40 {
		t.Fatalf("cache must survive refresh, got %d", got)
	}
}

func TestRefreshKeepsHandlesWhenEnumerationFails(t *testing.T) {
	display := testsupport.NewFakeDisplay("i2c-1", "FAKE-1", 40)
	backend := testsupport.NewFakeBackend(display)
	manager := newManager(t, backend, brightness.Options{})

	backend.SetError(errors.New("bus scan failed"))
	if err := manager.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if display.Closed() {
		t.Fatal("existing handle must survive a failed refresh")
	}
	ids := manager.DisplayIDs()
	if len(ids) != 1 || ids[0] != "i2c-1" {
		t.Fatalf("unexpected display ids: %v", ids)
	}
}

func TestOperationsFailAfterClose(t *testing.T) {
	display := testsupport.NewFakeDisplay("i2c-1", "FAKE-1", 40)
	manager := newManager(t, testsupport.NewFakeBackend(display), brightness.Options{})

	if err := manager.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if _, err := manager.Get(context.Background()); !errors.Is(err, brightness.ErrNoDisplays) {
		t.Fatalf("expected ErrNoDisplays after close, got %v", err)
	}
	if _, err := manager.Set(context.Background(), 50); !errors.Is(err, brightness.ErrNoDisplays) {
		t.Fatalf("expected ErrNoDisplays after close, got %v", err)
	}
}

func TestConcurrentOperationsConvergeOnAllDisplays(t *testing.T) {
	first := testsupport.NewFakeDisplay("i2c-1", "FAKE-1", 40)
	second := testsupport.NewFakeDisplay("i2c-2", "FAKE-2", 40)
	third := testsupport.NewFakeDisplay("i2c-3", "FAKE-3", 40)
	backend := testsupport.NewFakeBackend(first, second, third)

	manager := newManager(t, backend, brightness.Options{
		ReadCooldown:  time.Nanosecond,
		WriteCooldown: time.Nanosecond,
	})

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(target int) {
			defer wg.Done()
			if _, err := manager.Set(ctx, target); err != nil {
				t.Errorf("concurrent Set(%d) returned error: %v", target, err)
			}
		}(10 * (i + 1))
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := manager.Get(ctx); err != nil {
				t.Errorf("concurrent Get returned error: %v", err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := manager.Refresh(ctx); err != nil {
			t.Errorf("concurrent Refresh returned error: %v", err)
		}
	}()
	wg.Wait()

	// Escape the write cooldown so the final set performs a real fan-out.
	time.Sleep(time.Millisecond)
	if _, err := manager.Set(ctx, 88); err != nil {
		t.Fatalf("final Set returned error: %v", err)
	}

	for _, d := range []*testsupport.FakeDisplay{first, second, third} {
		if got := d.Value(); got != 88 {
			t.Fatalf("display %s: expected 88, got %d", d.ID(), got)
		}
	}
	if got := manager.Value(); got != 88 {
		t.Fatalf("cache diverged from displays: %d", got)
	}
	// Every non-suppressed set writes all displays, so the counts match.
	if first.Writes() != second.Writes() || second.Writes() != third.Writes() {
		t.Fatalf("uneven write fan-out: %d/%d/%d",
			first.Writes(), second.Writes(), third.Writes())
	}
}

func TestCloseWaitsForObservers(t *testing.T) {
	display := testsupport.NewFakeDisplay("i2c-1", "FAKE-1", 40)
	var finished atomic.Bool
	manager := newManager(t, testsupport.NewFakeBackend(display), brightness.Options{
		ReadCooldown:  time.Nanosecond,
		WriteCooldown: time.Nanosecond,
		OnApply: func(previous, value int) {
			time.Sleep(50 * time.Millisecond)
			finished.Store(true)
		},
	})

	if _, err := manager.Set(context.Background(), 80); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := manager.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !finished.Load() {
		t.Fatal("Close returned before the observer finished")
	}
}

func TestCancelledContextShortCircuits(t *testing.T) {
	display := testsupport.NewFakeDisplay("i2c-1", "FAKE-1", 40)
	manager := newManager(t, testsupport.NewFakeBackend(display), brightness.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := manager.Get(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := display.Reads(); got != 0 {
		t.Fatalf("cancelled get must not touch hardware, reads=%d", got)
	}
}
