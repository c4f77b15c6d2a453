package gbm_test

import (
	"math"
	"testing"

	"github.com/sportai/fincast/internal/gbm"
)

func TestFitStepFunction(t *testing.T) {
	var x [][]float64
	var y []float64
	for i := 0; i < 40; i++ {
		x = append(x, []float64{float64(i), float64(i % 3)})
		if i < 20 {
			y = append(y, 2)
		} else {
			y = append(y, 10)
		}
	}
	m := gbm.New()
	if err := m.Fit(x, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	for _, tc := range []struct {
		in   []float64
		want float64
	}{
		{[]float64{3, 0}, 2},
		{[]float64{35, 2}, 10},
	} {
		if got := m.Predict(tc.in); math.Abs(got-tc.want) > 0.05 {
			t.Errorf("Predict(%v) = %.4f, want ~%v", tc.in, got, tc.want)
		}
	}
}

func TestFitLinearTrend(t *testing.T) {
	var x [][]float64
	var y []float64
	for i := 0; i < 200; i++ {
		v := float64(i) / 10
		x = append(x, []float64{v})
		y = append(y, 3*v+1)
	}
	m := gbm.New()
	if err := m.Fit(x, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	var mae float64
	for i := range x {
		mae += math.Abs(m.Predict(x[i]) - y[i])
	}
	mae /= float64(len(x))
	if mae > 1.0 {
		t.Fatalf("training MAE = %.3f, want < 1", mae)
	}
}

func TestFitConstantTarget(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}, {4}}
	y := []float64{5, 5, 5, 5}
	m := gbm.New()
	if err := m.Fit(x, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if got := m.Predict([]float64{100}); got != 5 {
		t.Fatalf("Predict = %v, want 5", got)
	}
}

func TestFitDeterministic(t *testing.T) {
	x := [][]float64{{1, 0}, {2, 1}, {3, 0}, {4, 1}, {5, 0}, {6, 1}}
	y := []float64{1, 4, 2, 8, 3, 9}
	a, b := gbm.New(), gbm.New()
	if err := a.Fit(x, y); err != nil {
		t.Fatal(err)
	}
	if err := b.Fit(x, y); err != nil {
		t.Fatal(err)
	}
	for _, row := range x {
		if a.Predict(row) != b.Predict(row) {
			t.Fatalf("non-deterministic prediction for %v", row)
		}
	}
}

func TestFitRejectsBadInput(t *testing.T) {
	m := gbm.New()
	if err := m.Fit(nil, nil); err == nil {
		t.Error("expected error for empty input")
	}
	if err := m.Fit([][]float64{{1}, {2}}, []float64{1}); err == nil {
		t.Error("expected error for length mismatch")
	}
	if err := m.Fit([][]float64{{1}, {2, 3}}, []float64{1, 2}); err == nil {
		t.Error("expected error for ragged rows")
	}
}
