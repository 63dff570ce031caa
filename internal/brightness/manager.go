package brightness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lux/internal/ddc"
	"lux/internal/logging"
)

// ErrNoDisplays indicates enumeration found no DDC/CI-capable displays.
// Fatal at daemon startup; reported and exited non-zero in direct mode.
var ErrNoDisplays = errors.New("no DDC/CI-capable displays found")

const (
	// maxBrightness is the upper bound enforced on every set.
	maxBrightness = 100
	// maxRaw bounds saturating adjust arithmetic before the final clamp.
	maxRaw = 65535

	defaultReadCooldown  = 100 * time.Millisecond
	defaultWriteCooldown = 200 * time.Millisecond
)

// Options configures manager construction.
type Options struct {
	// ReadCooldown is the minimum interval between real hardware reads.
	ReadCooldown time.Duration
	// WriteCooldown is the minimum interval between real hardware writes.
	// Writes are throttled harder than reads: they flicker and arrive in
	// key-repeat bursts.
	WriteCooldown time.Duration
	Logger        *slog.Logger
	// OnApply is invoked after a real (non-suppressed) hardware write with
	// the previous cached value and the applied value. Runs on its own
	// goroutine so observers cannot stall the write path; Close waits for
	// in-flight observers to finish.
	OnApply func(previous, value int)
}

// guardedDisplay pairs a display handle with its exclusive-access lock;
// handles are not thread-safe on their own.
type guardedDisplay struct {
	mu      sync.Mutex
	display ddc.Display
}

// Manager owns the enumerated displays and the cached brightness state.
// All operations may be invoked concurrently.
type Manager struct {
	backend       ddc.Backend
	logger        *slog.Logger
	readCooldown  time.Duration
	writeCooldown time.Duration
	onApply       func(previous, value int)
	observers     sync.WaitGroup

	mu        sync.Mutex
	displays  []*guardedDisplay
	value     int
	lastRead  time.Time
	lastWrite time.Time
}

// New enumerates displays through the backend and builds a manager.
// Returns ErrNoDisplays when the enumeration comes back empty.
func New(ctx context.Context, backend ddc.Backend, opts Options) (*Manager, error) {
	if backend == nil {
		return nil, errors.New("brightness manager requires a backend")
	}
	if opts.ReadCooldown <= 0 {
		opts.ReadCooldown = defaultReadCooldown
	}
	if opts.WriteCooldown <= 0 {
		opts.WriteCooldown = defaultWriteCooldown
	}
	if opts.WriteCooldown < opts.ReadCooldown {
		opts.WriteCooldown = opts.ReadCooldown
	}

	displays, err := enumerate(ctx, backend)
	if err != nil {
		return nil, err
	}

	return &Manager{
		backend:       backend,
		logger:        logging.NewComponentLogger(opts.Logger, "brightness"),
		readCooldown:  opts.ReadCooldown,
		writeCooldown: opts.WriteCooldown,
		onApply:       opts.OnApply,
		displays:      displays,
	}, nil
}

func enumerate(ctx context.Context, backend ddc.Backend) ([]*guardedDisplay, error) {
	found, err := backend.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate displays: %w", err)
	}
	if len(found) == 0 {
		return nil, ErrNoDisplays
	}
	displays := make([]*guardedDisplay, 0, len(found))
	for _, d := range found {
		displays = append(displays, &guardedDisplay{display: d})
	}
	return displays, nil
}

// Get returns the cached value inside the read cooldown window; otherwise it
// performs one real read against the first display and refreshes the cache.
func (m *Manager) Get(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(ctx)
}

func (m *Manager) getLocked(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(m.displays) == 0 {
		return 0, ErrNoDisplays
	}

	now := time.Now()
	if !m.lastRead.IsZero() && now.Sub(m.lastRead) < m.readCooldown {
		return m.value, nil
	}

	primary := m.displays[0]
	primary.mu.Lock()
	raw, err := primary.display.ReadVCP(ddc.FeatureBrightness)
	primary.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("read brightness: %w", err)
	}

	value := int(raw)
	if value > maxBrightness {
		value = maxBrightness
	}
	m.value = value
	m.lastRead = now
	return value, nil
}

// Set clamps value to [0,100] and applies it. Inside the write cooldown the
// clamped value is echoed back without touching hardware so a key-repeat
// burst never shows stale intermediate state; the burst's last call lands
// for real once the cooldown expires. Hardware writes fan out to every
// display in parallel and individual display failures are suppressed.
func (m *Manager) Set(ctx context.Context, value int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLocked(ctx, value)
}

func (m *Manager) setLocked(ctx context.Context, value int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(m.displays) == 0 {
		return 0, ErrNoDisplays
	}

	clamped := value
	if clamped > maxBrightness {
		clamped = maxBrightness
	}
	if clamped < 0 {
		clamped = 0
	}

	now := time.Now()
	if !m.lastWrite.IsZero() && now.Sub(m.lastWrite) < m.writeCooldown {
		return clamped, nil
	}

	var wg sync.WaitGroup
	for _, gd := range m.displays {
		wg.Add(1)
		go func(gd *guardedDisplay) {
			defer wg.Done()
			gd.mu.Lock()
			defer gd.mu.Unlock()
			if err := gd.display.WriteVCP(ddc.FeatureBrightness, uint16(clamped)); err != nil {
				// One unresponsive monitor must not block the others.
				m.logger.Warn("display write failed",
					logging.Error(err),
					logging.String(logging.FieldDisplay, gd.display.ID()),
					logging.String(logging.FieldEventType, "display_write_failed"),
					logging.String(logging.FieldErrorHint, "check monitor DDC/CI support and cabling"),
					logging.String(logging.FieldImpact, "brightness unchanged on this display"))
			}
		}(gd)
	}
	wg.Wait()

	previous := m.value
	m.value = clamped
	m.lastWrite = time.Now()
	if m.onApply != nil {
		m.observers.Add(1)
		go func(previous, value int) {
			defer m.observers.Done()
			m.onApply(previous, value)
		}(previous, clamped)
	}
	return clamped, nil
}

// Adjust reads the current brightness and applies current+step with
// saturating arithmetic, so extreme steps can neither underflow past zero
// nor overflow; the final clamp to 100 happens in the set path. The whole
// read-modify-write is atomic with respect to other manager operations.
func (m *Manager) Adjust(ctx context.Context, step int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.getLocked(ctx)
	if err != nil {
		return 0, err
	}

	next := current + step
	if next < 0 {
		next = 0
	}
	if next > maxRaw {
		next = maxRaw
	}
	return m.setLocked(ctx, next)
}

// Refresh re-enumerates displays after a hotplug event. Cache value and
// cooldown timers survive; only the handles are rebuilt. When enumeration
// fails or comes back empty the existing handles are kept.
func (m *Manager) Refresh(ctx context.Context) error {
	displays, err := enumerate(ctx, m.backend)
	if err != nil {
		return err
	}

	m.mu.Lock()
	old := m.displays
	m.displays = displays
	m.mu.Unlock()

	for _, gd := range old {
		gd.mu.Lock()
		_ = gd.display.Close()
		gd.mu.Unlock()
	}

	m.logger.Info("displays re-enumerated",
		logging.Int("display_count", len(displays)),
		logging.String(logging.FieldEventType, "displays_refreshed"))
	return nil
}

// Value returns the cached brightness without touching hardware.
func (m *Manager) Value() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

// DisplayIDs lists the enumerated display identifiers.
func (m *Manager) DisplayIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.displays))
	for _, gd := range m.displays {
		ids = append(ids, gd.display.ID())
	}
	return ids
}

// Close releases all display handles and waits for in-flight OnApply
// observers to finish.
func (m *Manager) Close() error {
	m.mu.Lock()
	var firstErr error
	for _, gd := range m.displays {
		gd.mu.Lock()
		if err := gd.display.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		gd.mu.Unlock()
	}
	m.displays = nil
	m.mu.Unlock()

	// Observers may call back into the manager, so wait without the lock.
	m.observers.Wait()
	return firstErr
}
