package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Sleeper blocks the calling goroutine for a settle delay.
type Sleeper interface {
	Sleep(d time.Duration)
}

// Real sleeps with time.Sleep.
type Real struct{}

func (Real) Sleep(d time.Duration) { time.Sleep(d) }

// Recorder records requested delays without blocking.
type Recorder struct {
	Delays []time.Duration
}

func (r *Recorder) Sleep(d time.Duration) { r.Delays = append(r.Delays, d) }

// Total returns the sum of all recorded delays.
func (r *Recorder) Total() time.Duration {
	var sum time.Duration
	for _, d := range r.Delays {
		sum += d
	}
	return sum
}

// LinesToDuration converts a count of row times to a duration.
func LinesToDuration(lines uint32, lineNs uint64) time.Duration {
	return time.Duration(uint64(lines) * lineNs)
}
