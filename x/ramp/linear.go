// Package ramp steps a control value towards a target over time.
package ramp

import (
	"errors"
	"time"

	"golang.org/x/exp/constraints"

	"imx662-go/x/mathx"
)

// Tick waits for d and reports whether to continue (false => cancelled).
type Tick func(d time.Duration) bool

// ErrCancelled is returned when Tick stops a ramp early.
var ErrCancelled = errors.New("ramp cancelled")

// Linear moves from cur to to in steps equal increments spread over d,
// calling set once per distinct value. steps <= 1 or d <= 0 snaps to to.
// The first set failure ends the ramp.
func Linear[T constraints.Integer](cur, to T, steps int, d time.Duration, tick Tick, set func(T) error) error {
	if steps <= 1 || d <= 0 || cur == to {
		return set(to)
	}
	span := int64(to) - int64(cur)
	steps = mathx.Clamp(steps, 2, int(mathx.Abs(span)))
	if steps < 2 {
		return set(to)
	}
	stepDur := d / time.Duration(steps)
	last := cur
	for i := 1; i < steps; i++ {
		if !tick(stepDur) {
			return ErrCancelled
		}
		v := T(int64(cur) + span*int64(i)/int64(steps))
		if v == last {
			continue
		}
		if err := set(v); err != nil {
			return err
		}
		last = v
	}
	if !tick(stepDur) {
		return ErrCancelled
	}
	return set(to)
}

// Sleep returns a Tick that sleeps unless done closes first.
func Sleep(done <-chan struct{}) Tick {
	return func(d time.Duration) bool {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-done:
			return false
		case <-t.C:
			return true
		}
	}
}
