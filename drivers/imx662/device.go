package imx662

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"imx662-go/x/logx"
	"imx662-go/x/timex"

	"tinygo.org/x/drivers"
)

// Power switches the sensor supplies, clocks and reset line.
type Power interface {
	PowerOn(ctx context.Context) error
	PowerOff(ctx context.Context) error
}

// Link is an optional serializer/deserializer pair between the sensor and
// the host. Failures should be reported as *LinkError.
type Link interface {
	Setup(ctx context.Context) error
	StartStreaming(ctx context.Context) error
	StopStreaming(ctx context.Context) error
	Reset(ctx context.Context) error
}

type noPower struct{}

func (noPower) PowerOn(context.Context) error  { return nil }
func (noPower) PowerOff(context.Context) error { return nil }

// Lifecycle is the device power/streaming state.
type Lifecycle uint8

const (
	Off Lifecycle = iota
	Standby
	Configuring
	Streaming
)

func (l Lifecycle) String() string {
	switch l {
	case Standby:
		return "standby"
	case Configuring:
		return "configuring"
	case Streaming:
		return "streaming"
	}
	return "off"
}

// Config controls non-register behaviour. Zero values pick defaults.
type Config struct {
	// Address defaults to 0x1A.
	Address uint16
	Board   BoardConfig
	Power   Power
	Link    Link
	Sleeper timex.Sleeper
	Logger  *slog.Logger
	// Retries bounds each bus transfer; default 10.
	Retries int
	// VerifyChipID checks the reset value of 0x30DC during power-on.
	VerifyChipID bool
	// HCG enables the high conversion gain path on linear modes.
	HCG           bool
	OperationMode OperationMode
	SyncMode      SyncMode
}

func DefaultConfig() Config {
	return Config{
		Address:       Address,
		Board:         DefaultBoardConfig(),
		Retries:       defaultRetries,
		OperationMode: Master,
		SyncMode:      SyncInternal,
	}
}

func (c *Config) applyDefaults() {
	if c.Address == 0 {
		c.Address = Address
	}
	if c.Board == (BoardConfig{}) {
		c.Board = DefaultBoardConfig()
	}
	if c.Power == nil {
		c.Power = noPower{}
	}
	if c.Sleeper == nil {
		c.Sleeper = timex.Real{}
	}
	if c.Retries <= 0 {
		c.Retries = defaultRetries
	}
	c.Logger = logx.Or(c.Logger, "driver", "imx662")
}

// Device is one sensor instance. All methods are safe for concurrent use;
// one mutex serialises every state change.
type Device struct {
	mu sync.Mutex

	cfg   Config
	log   *slog.Logger
	io    regIO
	reg   *Registry
	sleep timex.Sleeper

	timing Timing
	ctrls  controlValues
	state  Lifecycle

	commonWritten bool
	resumeStream  bool
}

// New builds a device on an already configured bus. It does not touch the
// sensor; the default mode is selected and the device starts Off.
func New(bus drivers.I2C, cfg Config) (*Device, error) {
	if bus == nil {
		return nil, errors.New("imx662: nil bus")
	}
	cfg.applyDefaults()
	reg, err := NewRegistry(cfg.Board)
	if err != nil {
		return nil, err
	}
	d := &Device{
		cfg:   cfg,
		log:   cfg.Logger,
		reg:   reg,
		sleep: cfg.Sleeper,
		io:    regIO{bus: bus, addr: cfg.Address, retries: cfg.Retries, log: cfg.Logger},
	}
	d.timing = *NewTiming(cfg.Board.DataRate, cfg.Board.Lanes)
	d.timing.SetMode(reg.Default())
	d.resetControls()
	d.syncDataRateLocked()
	d.clampExposureLocked()
	return d, nil
}

// Registry exposes the mode catalog.
func (d *Device) Registry() *Registry { return d.reg }

// State reports the lifecycle state.
func (d *Device) State() Lifecycle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Timing returns a snapshot of the timing state.
func (d *Device) Timing() TimingState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timing.State()
}

// FrameRate reports the current frame rate in µfps.
func (d *Device) FrameRate() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timing.MaxFrameRate()
}

// Format returns the active mode.
func (d *Device) Format() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timing.Mode()
}

// TryFormat resolves a request to a mode without changing anything.
func (d *Device) TryFormat(f Format, t Transfer, w, h uint32) (Mode, error) {
	modes, err := d.reg.Lookup(f, t)
	if err != nil {
		return Mode{}, err
	}
	return Nearest(modes, w, h)
}

// SetFormat selects the mode nearest to the request. In Standby the mode is
// entered right away; while Off it is entered at stream start. Changing
// format while streaming fails with ErrBusy.
func (d *Device) SetFormat(f Format, t Transfer, w, h uint32) (Mode, error) {
	m, err := d.TryFormat(f, t, w, h)
	if err != nil {
		return Mode{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Streaming {
		return Mode{}, fmt.Errorf("%w: format change while streaming", ErrBusy)
	}
	old := d.timing.Mode()
	d.timing.SetMode(m)
	d.rebaseControls(old)
	d.log.Info("mode selected", "mode", m.String(), "hdr", m.HDR != HDRNone)
	if d.state == Standby {
		if err := d.enterModeLocked(); err != nil {
			return Mode{}, err
		}
	}
	return m, nil
}

// ReadRegister reads n bytes at reg, assembled big-endian.
func (d *Device) ReadRegister(reg uint16, n int) (uint32, error) {
	if n < 1 || n > 4 {
		return 0, fmt.Errorf("imx662: invalid register width %d", n)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.powered() {
		return 0, ErrNotPowered
	}
	return d.io.read(reg, n)
}

// WriteRegister writes n bytes of val at reg, little-endian.
func (d *Device) WriteRegister(reg uint16, n int, val uint32) error {
	if n < 1 || n > 4 {
		return fmt.Errorf("imx662: invalid register width %d", n)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.powered() {
		return ErrNotPowered
	}
	return d.io.write(reg, n, val)
}
