package smoothing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstantDirichlet_Evaluate(t *testing.T) {
	c := NewConstantDirichlet(1, 1)
	// Laplace(1,1) with no observations starts at the prior mean, 0.5.
	assert.InDelta(t, 0.5, c.Evaluate(0, 0, 0), 1e-9)
	// Ten successes out of ten pulls it close to, but short of, 1.
	assert.InDelta(t, 11.0/12.0, c.Evaluate(10, 10, 0), 1e-9)
	// A lopsided prior shifts the no-observation estimate toward beta.
	skewed := NewConstantDirichlet(1, 3)
	assert.InDelta(t, 0.25, skewed.Evaluate(0, 0, 0), 1e-9)
}

func TestExponentialDirichlet_DecaysTowardConstantDirichletAtDepthZero(t *testing.T) {
	e := NewExponentialDirichlet(2, 1, 1)
	c := NewConstantDirichlet(2, 2)
	assert.InDelta(t, c.Evaluate(4, 2, 0), e.Evaluate(4, 2, 0), 1e-9)
}

func TestExponentialDirichlet_WeakensWithDepth(t *testing.T) {
	e := NewExponentialDirichlet(2, 1, 1)
	shallow := e.Evaluate(4, 4, 0)
	deep := e.Evaluate(4, 4, 5)
	// A weaker prior at greater depth lets the observed 100% success rate
	// pull the estimate closer to 1.
	assert.Greater(t, deep, shallow)
}

func TestH2_ZeroAtExtremes(t *testing.T) {
	assert.Equal(t, 0.0, H2(0))
	assert.Equal(t, 0.0, H2(1))
	assert.Equal(t, 1.0, H2(0.5))
}

func TestH2_SymmetricAroundHalf(t *testing.T) {
	assert.InDelta(t, H2(0.3), H2(0.7), 1e-9)
}

func TestConfidence_IsOneMinusH2(t *testing.T) {
	assert.InDelta(t, 1, Confidence(0), 1e-9)
	assert.InDelta(t, 0, Confidence(0.5), 1e-9)
}

func TestInverseH2_RoundTripsWithH2OnLowBranch(t *testing.T) {
	for _, p := range []float64{0.01, 0.1, 0.25, 0.4, 0.5} {
		e := H2(p)
		got := InverseH2(e)
		assert.InDelta(t, p, got, 1e-4, "p=%v", p)
	}
}

func TestInverseH2_Boundaries(t *testing.T) {
	assert.Equal(t, 0.0, InverseH2(0))
	assert.Equal(t, 0.0, InverseH2(-1))
	assert.Equal(t, 0.5, InverseH2(1))
	assert.Equal(t, 0.5, InverseH2(2))
}

func TestInverseProbaConfidence_RoundTripsWithConfidence(t *testing.T) {
	for _, p := range []float64{0.05, 0.2, 0.5} {
		theta := Confidence(p)
		got := InverseProbaConfidence(theta)
		assert.InDelta(t, p, got, 1e-4, "p=%v", p)
	}
}

func TestMinCountForConfidence_ZeroThetaNeedsNoExtraCount(t *testing.T) {
	// theta=0 means any confidence clears the bar; InverseProbaConfidence(0)
	// bottoms out InverseH2 at its r=0.5 boundary, collapsing the formula to
	// beta-alpha.
	alpha, beta := 1.0, 3.0
	assert.InDelta(t, beta-alpha, MinCountForConfidence(0, alpha, beta), 1e-6)
}

func TestMinCountForConfidence_MonotonicInTheta(t *testing.T) {
	// A higher theta gives a smaller low root r, and the formula rises with
	// r, so the count falls as theta rises.
	lo := MinCountForConfidence(0.1, 1, 1)
	hi := MinCountForConfidence(0.5, 1, 1)
	assert.Less(t, hi, lo)
}

func TestMinCountForConfidence_MatchesClosedForm(t *testing.T) {
	alpha, beta, theta := 1.0, 1.0, 0.3
	r := InverseProbaConfidence(theta)
	want := ((alpha+beta)*r - alpha) / (1 - r)
	assert.Equal(t, want, MinCountForConfidence(theta, alpha, beta))
	assert.False(t, math.IsNaN(want))
}
