// Package shift implements an Fs/4 frequency shifter: a no-arithmetic
// cyclic rotation through {+1,-j,-1,+j} that moves a zero-IF device's
// spectrum by -Fs/4, decorrelating the wanted signal from DC-offset
// artifacts at the center of the band.
package shift

// Shifter carries the rotation phase (0..3) across block boundaries.
type Shifter struct {
	phase int
}

// New constructs a shifter with the rotation counter at its initial phase.
func New() *Shifter {
	return &Shifter{}
}

// Process rotates src into dst (which may alias src) by -Fs/4, advancing
// and wrapping the phase counter by len(src).
//
// Multiplying sample n by j^(-n mod 4) cycles through:
//
//	n mod 4 == 0: *  1        -> (re, im)
//	n mod 4 == 1: * -j        -> (im, -re)
//	n mod 4 == 2: * -1        -> (-re, -im)
//	n mod 4 == 3: *  j        -> (-im, re)
func (s *Shifter) Process(dst, src []complex64) {
	phase := s.phase
	for i, x := range src {
		re, im := real(x), imag(x)
		switch phase {
		case 0:
			dst[i] = complex(re, im)
		case 1:
			dst[i] = complex(im, -re)
		case 2:
			dst[i] = complex(-re, -im)
		case 3:
			dst[i] = complex(-im, re)
		}
		phase = (phase + 1) % 4
	}
	s.phase = phase
}

// Phase returns the current rotation phase (0..3).
func (s *Shifter) Phase() int { return s.phase }
