package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratioSampler passes the first keep events of every window of events. Both
// halves of the rule live in one atomic word so Allow stays lock-free on the
// per-update debug path.
type ratioSampler struct {
	rule atomic.Uint64 // keep<<32 | window, 0 means no sampling
	seen atomic.Uint64
}

func newRatioSampler(keep, window int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(keep, window)
	return s
}

// Set installs a keep-of-window rule. Non-positive values clear the rule and
// every event passes.
func (s *ratioSampler) Set(keep, window int) {
	if keep <= 0 || window <= 0 {
		s.rule.Store(0)
		return
	}
	if keep > window {
		keep = window
	}
	s.rule.Store(uint64(keep)<<32 | uint64(window))
	s.seen.Store(0)
}

// Allow reports whether the current event falls inside the kept part of its
// window.
func (s *ratioSampler) Allow() bool {
	rule := s.rule.Load()
	if rule == 0 {
		return true
	}
	keep := rule >> 32
	window := rule & 0xffffffff
	return (s.seen.Add(1)-1)%window < keep
}

// parseRatioSpec reads "1/50" style ratios; a bare number N is shorthand for
// 1/N. Anything unparseable comes back as 0, 0.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, 0
	}
	if keepStr, windowStr, ok := strings.Cut(spec, "/"); ok {
		keep, errK := strconv.Atoi(strings.TrimSpace(keepStr))
		window, errW := strconv.Atoi(strings.TrimSpace(windowStr))
		if errK != nil || errW != nil {
			return 0, 0
		}
		return keep, window
	}
	n, err := strconv.Atoi(spec)
	if err != nil || n <= 0 {
		return 0, 0
	}
	return 1, n
}
