package camera

import (
	"context"
	"errors"
	"testing"
	"time"

	"imx662-go/drivers/imx662"
	"imx662-go/x/i2csim"
)

func testDevice(t *testing.T) *imx662.Device {
	t.Helper()
	dev, err := imx662.New(i2csim.New(imx662.Address, nil), imx662.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return dev
}

func TestWorkerRunsJobsInOrder(t *testing.T) {
	sink := make(chan result, 4)
	w := newWorker("cam0", testDevice(t), infoMeta{sensor: "imx662"}, WorkerConfig{}, sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	for i := 0; i < 3; i++ {
		n := i
		w.Submit(job{verb: "n", mutates: n == 2, run: func(context.Context, *imx662.Device) (any, error) { return n, nil }})
	}
	for i := 0; i < 3; i++ {
		r, ok := recvWithin(t, sink, time.Second)
		if !ok {
			t.Fatalf("result %d missing", i)
		}
		if r.value != i || r.from != w || r.dev != "cam0" {
			t.Fatalf("result %d = %+v", i, r)
		}
		if (r.info != nil) != (i == 2) {
			t.Fatalf("result %d info = %v", i, r.info)
		}
		if r.state.Lifecycle != "off" {
			t.Fatalf("state = %+v", r.state)
		}
	}
}

func TestWorkerErrorLandsInState(t *testing.T) {
	sink := make(chan result, 1)
	w := newWorker("cam0", testDevice(t), infoMeta{}, WorkerConfig{}, sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	w.Submit(job{run: func(context.Context, *imx662.Device) (any, error) { return nil, errors.New("boom") }})
	r, ok := recvWithin(t, sink, time.Second)
	if !ok || r.err == nil || r.state.Error != "boom" {
		t.Fatalf("result = %+v", r)
	}
}

func TestWorkerJobTimeout(t *testing.T) {
	sink := make(chan result, 1)
	w := newWorker("cam0", testDevice(t), infoMeta{}, WorkerConfig{JobTimeout: 10 * time.Millisecond}, sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	w.Submit(job{run: func(ctx context.Context, _ *imx662.Device) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}})
	r, ok := recvWithin(t, sink, time.Second)
	if !ok || !errors.Is(r.err, context.DeadlineExceeded) {
		t.Fatalf("result = %+v", r)
	}
}

func TestWorkerCloseDrains(t *testing.T) {
	sink := make(chan result, 4)
	w := newWorker("cam0", testDevice(t), infoMeta{}, WorkerConfig{}, sink)
	nop := func(context.Context, *imx662.Device) (any, error) { return nil, nil }
	w.Submit(job{run: nop})
	w.Submit(job{run: nop})
	w.Close()
	w.Start(context.Background())

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not exit")
	}
	if len(sink) != 2 {
		t.Fatalf("%d results after close", len(sink))
	}
}

func TestWorkerSubmitFull(t *testing.T) {
	w := newWorker("cam0", testDevice(t), infoMeta{}, WorkerConfig{InputQueueSize: 1, PrioWait: time.Millisecond}, nil)
	nop := func(context.Context, *imx662.Device) (any, error) { return nil, nil }
	if !w.Submit(job{run: nop}) {
		t.Fatal("first submit rejected")
	}
	if w.Submit(job{run: nop}) {
		t.Fatal("submit into a full queue accepted")
	}
	start := time.Now()
	if w.Submit(job{run: nop, prio: true}) {
		t.Fatal("priority submit into a full queue accepted")
	}
	if time.Since(start) < time.Millisecond {
		t.Fatal("priority submit did not wait")
	}
}
