package heartbeat

import (
	"context"
	"testing"
	"time"

	"imx662-go/bus"
	"imx662-go/types"
)

func nextBeat(t *testing.T, sub *bus.Subscription, d time.Duration) types.Heartbeat {
	t.Helper()
	select {
	case m := <-sub.Channel():
		hb, ok := m.Payload.(types.Heartbeat)
		if !ok {
			t.Fatalf("payload type %T", m.Payload)
		}
		if !m.Retained {
			t.Fatal("heartbeat not retained")
		}
		return hb
	case <-time.After(d):
		t.Fatal("no heartbeat")
		return types.Heartbeat{}
	}
}

func TestHeartbeatIntervalFromConfig(t *testing.T) {
	conn := bus.NewBus(8).NewConnection("test")
	sub := conn.Subscribe(topicHeartbeat)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var s Service
	if err := s.Start(ctx, conn); err != nil {
		t.Fatal(err)
	}
	if hb := nextBeat(t, sub, time.Second); hb.Seq != 1 {
		t.Fatalf("first beat = %+v", hb)
	}

	conn.Publish(conn.NewMessage(topicConfigHeartbeat, []byte(`{"interval_ms":20}`), true))
	prev := uint64(1)
	for i := 0; i < 3; i++ {
		hb := nextBeat(t, sub, 500*time.Millisecond)
		if hb.Seq <= prev {
			t.Fatalf("seq %d after %d", hb.Seq, prev)
		}
		prev = hb.Seq
	}
}

func TestDecodeConfig(t *testing.T) {
	tests := []struct {
		in   any
		want int
		ok   bool
	}{
		{[]byte(`{"interval_ms":250}`), 250, true},
		{`{"interval_ms":5}`, 5, true},
		{Config{IntervalMS: 7}, 7, true},
		{[]byte(`nope`), 0, false},
		{42, 0, false},
	}
	for _, tc := range tests {
		got, ok := decodeConfig(tc.in)
		if ok != tc.ok || got.IntervalMS != tc.want {
			t.Errorf("decodeConfig(%v) = %+v, %v", tc.in, got, ok)
		}
	}
}
