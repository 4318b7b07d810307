package analysis

import (
	"errors"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrPerfectSeparation is returned by FitLogistic when one predictor value
// splits the outcomes completely and the maximum-likelihood slope diverges.
var ErrPerfectSeparation = errors.New("perfect separation")

// linspace returns n evenly spaced values over [lo, hi].
func linspace(lo, hi float64, n int) []float64 {
	if n == 1 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}

// dropNaN returns the finite elements of xs.
func dropNaN(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

// mean is NaN for empty input.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// std is the sample standard deviation; NaN for fewer than two values.
func std(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.StdDev(xs, nil)
}

// sem is the standard error of the mean; NaN for fewer than two values.
func sem(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.StdErr(stat.StdDev(xs, nil), float64(len(xs)))
}

// nanSum adds the finite values of xs.
func nanSum(xs []float64) float64 {
	return floats.Sum(dropNaN(xs))
}

// nanMax is the largest finite value, or NaN when there is none.
func nanMax(xs []float64) float64 {
	v := dropNaN(xs)
	if len(v) == 0 {
		return math.NaN()
	}
	return floats.Max(v)
}

// quantile returns the p-quantile of xs by linear interpolation.
func quantile(p float64, xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

// Logistic is a fitted logit(p) = Intercept + Slope*x model.
type Logistic struct {
	Intercept float64
	Slope     float64
	// Cov is the 2x2 covariance of (Intercept, Slope).
	Cov *mat.SymDense
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

// Predict returns the modeled probability at x.
func (l Logistic) Predict(x float64) float64 {
	return sigmoid(l.Intercept + l.Slope*x)
}

// ConfInt returns the (1-alpha) confidence interval of the prediction at x,
// computed on the link scale and mapped through the sigmoid.
func (l Logistic) ConfInt(x, alpha float64) (lo, hi float64) {
	eta := l.Intercept + l.Slope*x
	v := mat.NewVecDense(2, []float64{1, x})
	se := math.Sqrt(mat.Inner(v, l.Cov, v))
	z := distuv.UnitNormal.Quantile(1 - alpha/2)
	return sigmoid(eta - z*se), sigmoid(eta + z*se)
}

// FitLogistic fits a binomial GLM with logit link to binary outcomes y.
func FitLogistic(x, y []float64) (Logistic, error) {
	if len(x) != len(y) || len(x) < 2 {
		return Logistic{}, errors.New("logistic fit needs at least two paired observations")
	}
	if separated(x, y) {
		return Logistic{}, ErrPerfectSeparation
	}
	nll := func(b []float64) float64 {
		var sum float64
		for i := range x {
			eta := b[0] + b[1]*x[i]
			// log(1+exp(eta)) - y*eta, stable for large |eta|
			sum += math.Max(eta, 0) + math.Log1p(math.Exp(-math.Abs(eta))) - y[i]*eta
		}
		return sum
	}
	grad := func(g, b []float64) {
		g[0], g[1] = 0, 0
		for i := range x {
			r := sigmoid(b[0]+b[1]*x[i]) - y[i]
			g[0] += r
			g[1] += r * x[i]
		}
	}
	res, err := optimize.Minimize(optimize.Problem{Func: nll, Grad: grad}, []float64{0, 0}, nil, &optimize.BFGS{})
	if err != nil {
		res, err = optimize.Minimize(optimize.Problem{Func: nll}, []float64{0, 0}, nil, &optimize.NelderMead{})
		if err != nil {
			return Logistic{}, err
		}
	}
	fit := Logistic{Intercept: res.X[0], Slope: res.X[1]}

	// Fisher information X'WX
	var a, b, c float64
	for i := range x {
		p := fit.Predict(x[i])
		w := p * (1 - p)
		a += w
		b += w * x[i]
		c += w * x[i] * x[i]
	}
	info := mat.NewSymDense(2, []float64{a, b, b, c})
	var chol mat.Cholesky
	if !chol.Factorize(info) {
		return Logistic{}, ErrPerfectSeparation
	}
	fit.Cov = mat.NewSymDense(2, nil)
	if err := chol.InverseTo(fit.Cov); err != nil {
		return Logistic{}, err
	}
	return fit, nil
}

// separated reports whether a threshold on x classifies y without error.
func separated(x, y []float64) bool {
	max0, min1 := math.Inf(-1), math.Inf(1)
	min0, max1 := math.Inf(1), math.Inf(-1)
	var n0, n1 int
	for i := range x {
		if y[i] == 1 {
			n1++
			min1 = math.Min(min1, x[i])
			max1 = math.Max(max1, x[i])
		} else {
			n0++
			max0 = math.Max(max0, x[i])
			min0 = math.Min(min0, x[i])
		}
	}
	if n0 == 0 || n1 == 0 {
		return true
	}
	return max0 < min1 || max1 < min0
}

// fitLinearSqrt fits y = c0*x + c1*sqrt(x) by least squares.
func fitLinearSqrt(x, y []float64) (c0, c1 float64, err error) {
	a := mat.NewDense(len(x), 2, nil)
	for i, v := range x {
		a.Set(i, 0, v)
		a.Set(i, 1, math.Sqrt(v))
	}
	var c mat.VecDense
	if err := c.SolveVec(a, mat.NewVecDense(len(y), slices.Clone(y))); err != nil {
		return 0, 0, err
	}
	return c.AtVec(0), c.AtVec(1), nil
}
