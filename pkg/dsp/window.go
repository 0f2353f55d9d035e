package dsp

import (
	"fmt"
	"math"
)

// Window is the taper applied before the transform.
type Window int

const (
	WindowNone Window = iota
	WindowHamming
	WindowHann
	WindowBlackman
)

func (w Window) String() string {
	switch w {
	case WindowNone:
		return "none"
	case WindowHamming:
		return "hamming"
	case WindowHann:
		return "hann"
	case WindowBlackman:
		return "blackman"
	}
	return fmt.Sprintf("Window(%d)", int(w))
}

// Coefficients returns n window coefficients and their sum.
func Coefficients(w Window, n int) ([]float64, float64) {
	c := make([]float64, n)
	sum := 0.0
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n-1)
		switch w {
		case WindowHamming:
			c[i] = 0.54 - 0.46*math.Cos(2*math.Pi*x)
		case WindowHann:
			c[i] = 0.5 - 0.5*math.Cos(2*math.Pi*x)
		case WindowBlackman:
			c[i] = 0.42 - 0.5*math.Cos(2*math.Pi*x) + 0.08*math.Cos(4*math.Pi*x)
		default:
			c[i] = 1
		}
		sum += c[i]
	}
	return c, sum
}
