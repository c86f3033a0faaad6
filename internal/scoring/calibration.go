package scoring

import "math"

const calibrationBinCount = 10

// calibrationBinIndex maps a predicted probability into one of the 10
// equal-width bins over [0,1]. Every bin but the last is half-open [lo,hi);
// the last bin is closed on both ends so p == 1.0 lands in it.
func calibrationBinIndex(p float64) int {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return calibrationBinCount - 1
	}
	idx := int(p * calibrationBinCount)
	if idx >= calibrationBinCount {
		idx = calibrationBinCount - 1
	}
	return idx
}

// calibrationPoint is one (predicted probability, realized 0/1 outcome)
// observation fed into buildCalibration.
type calibrationPoint struct {
	P       float64
	Outcome float64
}

// buildCalibration bins points into the 10 fixed-width bins and reports the
// count-weighted mean absolute gap between mean forecast and observed
// frequency as the calibration error.
func buildCalibration(points []calibrationPoint) ([]CalibrationBin, *float64) {
	if len(points) == 0 {
		return nil, nil
	}

	sums := make([]float64, calibrationBinCount)
	outs := make([]float64, calibrationBinCount)
	counts := make([]int, calibrationBinCount)
	for _, pt := range points {
		idx := calibrationBinIndex(pt.P)
		sums[idx] += pt.P
		outs[idx] += pt.Outcome
		counts[idx]++
	}

	bins := make([]CalibrationBin, calibrationBinCount)
	weightedGap := 0.0
	total := 0
	for i := 0; i < calibrationBinCount; i++ {
		lo := float64(i) / calibrationBinCount
		hi := float64(i+1) / calibrationBinCount
		bin := CalibrationBin{Low: lo, High: hi, Count: counts[i]}
		if counts[i] > 0 {
			bin.MeanForecast = sums[i] / float64(counts[i])
			bin.ObservedFrequency = outs[i] / float64(counts[i])
			weightedGap += float64(counts[i]) * math.Abs(bin.MeanForecast-bin.ObservedFrequency)
			total += counts[i]
		}
		bins[i] = bin
	}
	if total == 0 {
		return bins, nil
	}
	err := weightedGap / float64(total)
	return bins, &err
}
