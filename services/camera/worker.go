package camera

import (
	"context"
	"time"

	"imx662-go/bus"
	"imx662-go/drivers/imx662"
	"imx662-go/types"
)

// jobFunc performs one blocking operation against a sensor.
type jobFunc func(ctx context.Context, dev *imx662.Device) (any, error)

type job struct {
	req  *bus.Message // nil for service-initiated work
	verb string
	run  jobFunc
	// mutates republishes the retained info document after the job.
	mutates bool
	prio    bool
	// timeout overrides WorkerConfig.JobTimeout when set.
	timeout time.Duration
}

// result is emitted by a worker once per job.
type result struct {
	from  *deviceWorker
	dev   string
	req   *bus.Message
	verb  string
	value any
	err   error
	state types.CameraState
	info  *types.CameraInfo
}

// WorkerConfig bounds a device worker.
type WorkerConfig struct {
	JobTimeout     time.Duration
	InputQueueSize int
	PrioWait       time.Duration
}

func (c *WorkerConfig) applyDefaults() {
	if c.JobTimeout <= 0 {
		c.JobTimeout = 2 * time.Second
	}
	if c.InputQueueSize <= 0 {
		c.InputQueueSize = 8
	}
	if c.PrioWait <= 0 {
		c.PrioWait = 5 * time.Millisecond
	}
}

// deviceWorker serialises blocking sensor calls off the service loop.
type deviceWorker struct {
	name string
	dev  *imx662.Device
	cfg  WorkerConfig
	meta infoMeta
	reqQ chan job
	sink chan<- result
	done chan struct{}
}

func newWorker(name string, dev *imx662.Device, meta infoMeta, cfg WorkerConfig, sink chan<- result) *deviceWorker {
	cfg.applyDefaults()
	return &deviceWorker{
		name: name,
		dev:  dev,
		cfg:  cfg,
		meta: meta,
		reqQ: make(chan job, cfg.InputQueueSize),
		sink: sink,
		done: make(chan struct{}),
	}
}

// Submit queues a job without blocking the caller. Priority jobs wait
// briefly for room; false means the queue is full.
func (w *deviceWorker) Submit(j job) bool {
	select {
	case w.reqQ <- j:
		return true
	default:
		if j.prio {
			select {
			case w.reqQ <- j:
				return true
			case <-time.After(w.cfg.PrioWait):
			}
		}
		return false
	}
}

// Close stops intake; queued jobs still run. Must not race with Submit.
func (w *deviceWorker) Close() { close(w.reqQ) }

// Done is closed when the worker goroutine exits.
func (w *deviceWorker) Done() <-chan struct{} { return w.done }

func (w *deviceWorker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				return
			case j, ok := <-w.reqQ:
				if !ok {
					return
				}
				w.emit(ctx, w.run(ctx, j))
			}
		}
	}()
}

func (w *deviceWorker) run(ctx context.Context, j job) result {
	d := w.cfg.JobTimeout
	if j.timeout > 0 {
		d = j.timeout
	}
	jctx, cancel := context.WithTimeout(ctx, d)
	v, err := j.run(jctx, w.dev)
	cancel()
	r := result{from: w, dev: w.name, req: j.req, verb: j.verb, value: v, err: err, state: stateOf(w.dev)}
	if err != nil {
		r.state.Error = err.Error()
	}
	if j.mutates {
		info := infoOf(w.dev, w.meta)
		r.info = &info
	}
	return r
}

func (w *deviceWorker) emit(ctx context.Context, r result) {
	select {
	case w.sink <- r:
	case <-ctx.Done():
	}
}
