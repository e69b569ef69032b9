package audio

// Resample converts a block of mono float32 samples from srcRate to dstRate
// using linear interpolation. The output always contains exactly
// floor(len(in) * dstRate / srcRate) samples and preserves sample order.
//
// Linear interpolation is deliberate: higher-order filters buy little for
// speech at 16kHz and this matches the remote service's expectations for
// continuous microphone streaming.
func Resample(in []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}

	ratio := float64(dstRate) / float64(srcRate)
	outLen := int(float64(len(in)) * ratio)
	out := make([]float32, outLen)

	for i := 0; i < outLen; i++ {
		srcIndex := float64(i) / ratio
		index := int(srcIndex)
		frac := float32(srcIndex - float64(index))

		if index < len(in)-1 {
			out[i] = in[index]*(1-frac) + in[index+1]*frac
		} else if len(in) > 0 {
			out[i] = in[len(in)-1]
		}
	}

	return out
}
