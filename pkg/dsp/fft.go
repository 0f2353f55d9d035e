package dsp

import (
	"math"
	"math/cmplx"
)

const (
	// minPeak is the magnitude a bin must exceed to be considered at all.
	minPeak = 3
	// minSignal is the magnitude below which no dominant bin is reported.
	minSignal = 7
)

// Spectrum returns the one-sided amplitude spectrum of a display frame.
// Samples are centered on 128; bin k holds the amplitude, in sample units,
// of the component with k cycles per frame. len(samples) must be a power of two.
func Spectrum(samples []uint8, w Window) []float64 {
	n := len(samples)
	coef, sum := Coefficients(w, n)
	input := make([]complex128, n)
	for i, v := range samples {
		input[i] = complex((float64(v)-128)*coef[i], 0)
	}
	out := FFT(input)
	mag := make([]float64, n/2)
	for i := range mag {
		mag[i] = cmplx.Abs(out[i]) * 2 / sum
	}
	if len(mag) > 0 {
		mag[0] /= 2
	}
	return mag
}

// DominantBin returns the strongest non-DC bin of mag, or 0 when no bin
// carries a usable signal. Bin 1 is skipped too when DC outweighs it.
func DominantBin(mag []float64) int {
	if len(mag) < 2 {
		return 0
	}
	start := 1
	if mag[0] > mag[1] {
		start = 2
	}
	peak := float64(minPeak)
	f := 0
	for i := start; i < len(mag); i++ {
		if mag[i] > peak {
			peak = mag[i]
			f = i
		}
	}
	if f == 0 || mag[f] <= minSignal {
		return 0
	}
	return f
}

// PowerDB computes a two-sided power spectrum in dB relative to full scale
// treating ch1 as I and ch2 as Q. DC is shifted to the center bin.
func PowerDB(iSamples, qSamples []uint8, w Window) []float64 {
	n := len(iSamples)
	coef, sum := Coefficients(w, n)
	input := make([]complex128, n)
	for i := 0; i < n; i++ {
		input[i] = complex((float64(iSamples[i])-128)*coef[i], (float64(qSamples[i])-128)*coef[i])
	}
	out := FFT(input)

	const fullScale = 128.0
	reference := fullScale * sum
	result := make([]float64, n)
	half := n / 2
	for i := 0; i < n; i++ {
		mag := cmplx.Abs(out[(i+half)%n])
		if mag > 0 {
			result[i] = 20 * math.Log10(mag/reference)
		} else {
			result[i] = -150
		}
	}
	return result
}

// FFT is an iterative radix-2 Cooley-Tukey transform. len(x) must be a
// power of two; x is not modified.
func FFT(x []complex128) []complex128 {
	n := len(x)
	if n <= 1 {
		return append([]complex128(nil), x...)
	}

	result := make([]complex128, n)
	bits := 0
	for temp := n; temp > 1; temp >>= 1 {
		bits++
	}
	for i := 0; i < n; i++ {
		j := 0
		for k := 0; k < bits; k++ {
			if i&(1<<k) != 0 {
				j |= 1 << (bits - 1 - k)
			}
		}
		result[j] = x[i]
	}

	for size := 2; size <= n; size *= 2 {
		halfSize := size / 2
		tableStep := n / size
		for i := 0; i < n; i += size {
			k := 0
			for j := i; j < i+halfSize; j++ {
				w := cmplx.Exp(complex(0, -2*math.Pi*float64(k)/float64(n)))
				t := result[j+halfSize] * w
				result[j+halfSize] = result[j] - t
				result[j] = result[j] + t
				k += tableStep
			}
		}
	}
	return result
}
