package stream

// RollingXor tracks a stream of words X(0), X(1), ... and keeps
// [X(i), X(i)^X(i-1), X(i-1)^X(i-2)] after X(i) has been pushed.
// Words before the start of the stream count as zero.
type RollingXor [3]uint32

// Advance pushes the next word and returns the state before the push.
func (r *RollingXor) Advance(x uint32) RollingXor {
	prev := *r
	*r = RollingXor{x, x ^ prev[0], prev[1]}
	return prev
}

// Diff returns X(i-lag) ^ X(i-lag-1) for lag 0 or 1.
func (r *RollingXor) Diff(lag int) uint32 {
	return r[1+lag]
}

// Raw returns X(i-lag) for lag 0, 1 or 2.
func (r *RollingXor) Raw(lag int) uint32 {
	x := r[0]
	for i := range lag {
		x ^= r[1+i]
	}
	return x
}
