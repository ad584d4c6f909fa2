package walkforward

import (
	"math"
)

// pairedTTest runs a paired two-tailed Student's t-test on the per-window
// train/validate primary-metric pairs and returns the p-value. This is the
// documented significance choice for overfitting detection: a low p-value
// with train consistently above validate is evidence the in-sample edge does
// not generalize.
//
// Returns 1.0 (no evidence) when fewer than 3 pairs exist.
func pairedTTest(train, validate []float64) float64 {
	n := len(train)
	if n != len(validate) || n < 3 {
		return 1.0
	}

	diffs := make([]float64, n)
	mean := 0.0
	for i := range train {
		diffs[i] = train[i] - validate[i]
		mean += diffs[i]
	}
	mean /= float64(n)

	sumSq := 0.0
	for _, d := range diffs {
		sumSq += (d - mean) * (d - mean)
	}
	// Sample variance of the differences.
	variance := sumSq / float64(n-1)

	if variance == 0 {
		if mean == 0 {
			return 1.0
		}
		return 0.0
	}

	t := mean / math.Sqrt(variance/float64(n))
	return tTestPValue(t, float64(n-1))
}

// tTestPValue computes the two-tailed p-value for a t statistic with df
// degrees of freedom via the regularized incomplete beta function:
// p = I_x(df/2, 1/2) with x = df/(df+t^2).
func tTestPValue(t, df float64) float64 {
	x := df / (df + t*t)
	p := regIncBeta(df/2, 0.5, x)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// regIncBeta evaluates the regularized incomplete beta function I_x(a, b)
// using the continued-fraction expansion.
func regIncBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}

	lnBeta, _ := math.Lgamma(a + b)
	lnA, _ := math.Lgamma(a)
	lnB, _ := math.Lgamma(b)
	front := math.Exp(lnBeta - lnA - lnB + a*math.Log(x) + b*math.Log(1-x))

	if x < (a+1)/(a+b+2) {
		return front * betaCF(a, b, x) / a
	}
	return 1 - front*betaCF(b, a, 1-x)/b
}

// betaCF is the continued fraction for the incomplete beta function
// (modified Lentz's method).
func betaCF(a, b, x float64) float64 {
	const (
		maxIter = 200
		eps     = 3e-14
		tiny    = 1e-30
	)

	qab := a + b
	qap := a + 1
	qam := a - 1
	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < tiny {
		d = tiny
	}
	d = 1 / d
	h := d

	for m := 1; m <= maxIter; m++ {
		m2 := 2 * m
		aa := float64(m) * (b - float64(m)) * x / ((qam + float64(m2)) * (a + float64(m2)))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		h *= d * c

		aa = -(a + float64(m)) * (qab + float64(m)) * x / ((a + float64(m2)) * (qap + float64(m2)))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		del := d * c
		h *= del
		if math.Abs(del-1) < eps {
			break
		}
	}
	return h
}
