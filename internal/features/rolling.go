package features

import "math"

// rollingSum keeps the sum of the last n values pushed.
type rollingSum struct {
	buf   []float64
	next  int
	count int
	sum   float64
}

func newRollingSum(n int) *rollingSum {
	return &rollingSum{buf: make([]float64, n)}
}

// push adds x and reports whether the window is full.
func (r *rollingSum) push(x float64) bool {
	if r.count == len(r.buf) {
		r.sum -= r.buf[r.next]
	} else {
		r.count++
	}
	r.buf[r.next] = x
	r.sum += x
	r.next = (r.next + 1) % len(r.buf)
	return r.count == len(r.buf)
}

func (r *rollingSum) value() float64 {
	return r.sum
}

// rollingStd tracks the sample standard deviation (n-1 denominator) of the
// last n values using a sliding Welford update.
type rollingStd struct {
	buf   []float64
	next  int
	count int
	mean  float64
	m2    float64
}

func newRollingStd(n int) *rollingStd {
	return &rollingStd{buf: make([]float64, n)}
}

// push adds x and reports whether the window is full.
func (r *rollingStd) push(x float64) bool {
	n := len(r.buf)
	if r.count < n {
		r.count++
		delta := x - r.mean
		r.mean += delta / float64(r.count)
		r.m2 += delta * (x - r.mean)
	} else {
		old := r.buf[r.next]
		prevMean := r.mean
		r.mean += (x - old) / float64(n)
		r.m2 += (x - old) * (x - r.mean + old - prevMean)
	}
	if r.m2 < 0 {
		r.m2 = 0
	}
	r.buf[r.next] = x
	r.next = (r.next + 1) % n
	return r.count == n
}

func (r *rollingStd) value() float64 {
	if r.count < 2 {
		return math.NaN()
	}
	return math.Sqrt(r.m2 / float64(r.count-1))
}
