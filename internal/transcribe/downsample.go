package transcribe

import "encoding/binary"

// downsampler converts interleaved float32 capture buffers to 16-bit mono
// little-endian PCM at the provider rate. The capture rate must be an
// integer multiple of the output rate; leftover samples carry over to the
// next buffer so no audio is dropped at frame boundaries.
type downsampler struct {
	ratio int

	carry    float64
	carryLen int

	out []byte
}

func newDownsampler(inRate, outRate int) *downsampler {
	return &downsampler{ratio: inRate / outRate}
}

// Process returns the PCM produced from one capture buffer. The returned
// slice is reused on the next call.
func (d *downsampler) Process(frame []float32, channels int) []byte {
	d.out = d.out[:0]
	if channels <= 0 {
		return d.out
	}

	frames := len(frame) / channels
	for i := 0; i < frames; i++ {
		var mono float64
		for ch := 0; ch < channels; ch++ {
			mono += float64(frame[i*channels+ch])
		}
		mono /= float64(channels)

		d.carry += mono
		d.carryLen++
		if d.carryLen < d.ratio {
			continue
		}

		sample := d.carry / float64(d.ratio)
		d.carry = 0
		d.carryLen = 0

		if sample > 1 {
			sample = 1
		} else if sample < -1 {
			sample = -1
		}
		d.out = binary.LittleEndian.AppendUint16(d.out, uint16(int16(sample*32767)))
	}
	return d.out
}
