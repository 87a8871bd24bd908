package signals

import (
	"encoding/json"
	"math"
)

// Window padding applied around a detected peak.
const (
	peakPrePad  = 5.0
	peakPostPad = 10.0
)

type rawAudioFeatures struct {
	Energy []float64   `json:"energy"`
	Volume []float64   `json:"volume"`
	MFCC   [][]float64 `json:"mfcc"`
}

// ExtractAudioPeaks detects local maxima in the chunk's audio signal
// arrays. Each array is treated as uniformly sampled across [0, duration];
// a sample is a peak iff it is strictly greater than both neighbors and
// exceeds the type's threshold. Spectral peaks are detected on the flux
// between consecutive MFCC frames.
func ExtractAudioPeaks(raw json.RawMessage, duration float64, p Params) []AudioPeak {
	if len(raw) == 0 || duration <= 0 {
		return nil
	}
	p = p.withDefaults()
	var af rawAudioFeatures
	if err := json.Unmarshal(raw, &af); err != nil {
		return nil
	}

	var peaks []AudioPeak
	peaks = append(peaks, seriesPeaks(af.Energy, duration, p.EnergyPeakThreshold, PeakEnergy, identityIntensity)...)
	peaks = append(peaks, seriesPeaks(af.Volume, duration, p.VolumePeakThreshold, PeakVolume, identityIntensity)...)

	if flux := spectralFlux(af.MFCC); len(flux) > 0 {
		norm := p.SpectralFluxNorm
		peaks = append(peaks, seriesPeaks(flux, duration, p.SpectralFluxThreshold, PeakSpectral, func(v float64) float64 {
			return clamp(v/norm, 0, 1)
		})...)
	}
	return peaks
}

func identityIntensity(v float64) float64 { return clamp(v, 0, 1) }

// seriesPeaks maps peak indices of one signal array to widened time windows.
func seriesPeaks(series []float64, duration, threshold float64, peakType string, intensity func(float64) float64) []AudioPeak {
	idxs := detectPeaks(series, threshold)
	if len(idxs) == 0 {
		return nil
	}
	step := duration / float64(len(series))
	out := make([]AudioPeak, 0, len(idxs))
	for _, i := range idxs {
		t := float64(i) * step
		out = append(out, AudioPeak{
			Start:     math.Max(0, t-peakPrePad),
			End:       math.Min(duration, t+peakPostPad),
			PeakTime:  t,
			Intensity: intensity(series[i]),
			Type:      peakType,
		})
	}
	return out
}

// detectPeaks returns indices i where series[i] is strictly greater than
// both neighbors and exceeds threshold. Endpoints never qualify.
func detectPeaks(series []float64, threshold float64) []int {
	if len(series) < 3 {
		return nil
	}
	var idxs []int
	for i := 1; i < len(series)-1; i++ {
		v := series[i]
		if v > series[i-1] && v > series[i+1] && v > threshold {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

// spectralFlux computes the Euclidean distance between consecutive MFCC
// frames. The first entry is zero so the flux series aligns with frames.
func spectralFlux(frames [][]float64) []float64 {
	if len(frames) < 2 {
		return nil
	}
	flux := make([]float64, len(frames))
	for i := 1; i < len(frames); i++ {
		flux[i] = frameDistance(frames[i-1], frames[i])
	}
	return flux
}

func frameDistance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
