// Package generate builds synthetic session logs for exercising replay
// without a live server to record from.
package generate

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/SmitUplenchwar2687/wsreplay/internal/recorder"
)

const (
	// PatternSteady spaces exchanges evenly.
	PatternSteady = "steady"
	// PatternBurst clusters exchanges into bursts with quiet gaps.
	PatternBurst = "burst"
	// PatternRamp packs exchanges closer together over time.
	PatternRamp = "ramp"
)

// Options controls how a synthetic log is generated.
type Options struct {
	Count    int           // client/server exchanges
	Duration time.Duration // time span of the session
	Pattern  string
	Seed     int64         // 0 picks a time-based seed
	MaxReply time.Duration // upper bound on server reply latency
}

// DefaultOptions returns the defaults used by the CLI.
func DefaultOptions() Options {
	return Options{
		Count:    20,
		Duration: 10 * time.Second,
		Pattern:  PatternSteady,
		MaxReply: 50 * time.Millisecond,
	}
}

// Session generates a time-ordered log of Count exchanges. Each exchange is
// a client request followed by the server's reply, plus a server greeting
// at time zero.
func Session(opts Options) ([]recorder.Record, error) {
	if opts.Count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", opts.Count)
	}
	if opts.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %s", opts.Duration)
	}
	if opts.MaxReply <= 0 {
		opts.MaxReply = time.Millisecond
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	rng := rand.New(rand.NewSource(opts.Seed))

	var starts []time.Duration
	switch opts.Pattern {
	case PatternSteady, "":
		starts = steady(opts.Count, opts.Duration)
	case PatternBurst:
		starts = burst(rng, opts.Count, opts.Duration)
	case PatternRamp:
		starts = ramp(opts.Count, opts.Duration)
	default:
		return nil, fmt.Errorf("unknown pattern %q, must be one of: steady, burst, ramp", opts.Pattern)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	records := make([]recorder.Record, 0, 2*opts.Count+1)
	records = append(records, recorder.Record{
		Time:      0,
		Direction: recorder.Incoming,
		Payload:   `{"op":"welcome"}`,
	})
	for i, at := range starts {
		reply := at + time.Duration(rng.Int63n(int64(opts.MaxReply)))
		records = append(records,
			recorder.Record{
				Time:      at.Milliseconds(),
				Direction: recorder.Outgoing,
				Payload:   fmt.Sprintf(`{"op":"request","seq":%d}`, i+1),
			},
			recorder.Record{
				Time:      reply.Milliseconds(),
				Direction: recorder.Incoming,
				Payload:   fmt.Sprintf(`{"op":"reply","seq":%d}`, i+1),
			},
		)
	}
	// A reply can land after the next request; keep each reply after its request.
	sort.SliceStable(records, func(i, j int) bool { return records[i].Time < records[j].Time })
	return records, nil
}

func steady(count int, dur time.Duration) []time.Duration {
	interval := dur / time.Duration(count)
	out := make([]time.Duration, count)
	for i := range out {
		out[i] = time.Duration(i) * interval
	}
	return out
}

func burst(rng *rand.Rand, count int, dur time.Duration) []time.Duration {
	const numBursts = 4
	out := make([]time.Duration, 0, count)
	burstSize := count / numBursts
	burstGap := dur / numBursts

	for b := 0; b < numBursts; b++ {
		burstStart := time.Duration(b) * burstGap
		for i := 0; i < burstSize; i++ {
			out = append(out, burstStart+time.Duration(rng.Intn(1000))*time.Millisecond)
		}
	}
	for len(out) < count {
		out = append(out, time.Duration(rng.Int63n(int64(dur))))
	}
	return out
}

func ramp(count int, dur time.Duration) []time.Duration {
	out := make([]time.Duration, count)
	for i := range out {
		frac := float64(i) / float64(count)
		out[i] = time.Duration(frac * frac * float64(dur))
	}
	return out
}

// WriteFile generates a session and writes it to path.
func WriteFile(path string, opts Options) ([]recorder.Record, error) {
	records, err := Session(opts)
	if err != nil {
		return nil, err
	}
	w, err := recorder.Create(path)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if err := w.Append(r); err != nil {
			w.Close()
			return nil, fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return records, w.Close()
}
