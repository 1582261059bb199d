package tensor

import (
	"math"
	"testing"
)

func matVecNaive(dst []float32, w *Mat, x []float32) {
	for i := 0; i < w.R; i++ {
		row := w.Data[i*w.Stride : i*w.Stride+w.C]
		var sum float32
		for j := 0; j < w.C; j++ {
			sum += row[j] * x[j]
		}
		dst[i] = sum
	}
}

func TestMatVecMatchesNaive(t *testing.T) {
	t.Parallel()
	for _, shape := range [][2]int{{1, 1}, {3, 5}, {7, 4}, {16, 9}} {
		r, c := shape[0], shape[1]
		w := NewMat(r, c)
		FillRand(&w, int64(r*31+c), 2)
		x := make([]float32, c)
		for i := range x {
			x[i] = float32(i) * 0.25
		}
		got := make([]float32, r)
		want := make([]float32, r)
		MatVec(got, &w, x)
		matVecNaive(want, &w, x)
		for i := range got {
			if math.Abs(float64(got[i]-want[i])) > 1e-5 {
				t.Fatalf("%dx%d: mismatch at %d: got %f want %f", r, c, i, got[i], want[i])
			}
		}
	}
}

func TestLinearAddsBias(t *testing.T) {
	t.Parallel()
	w, err := NewMatFromData(2, 2, []float32{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("NewMatFromData: %v", err)
	}
	dst := make([]float32, 2)
	Linear(dst, &w, []float32{1, 1}, []float32{10, 20})
	if dst[0] != 13 || dst[1] != 27 {
		t.Fatalf("unexpected output %v", dst)
	}
}

func TestNewMatFromDataLengthMismatch(t *testing.T) {
	t.Parallel()
	if _, err := NewMatFromData(2, 3, make([]float32, 5)); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func BenchmarkMatVec(b *testing.B) {
	r, c := 1024, 512
	w := NewMat(r, c)
	x := make([]float32, c)
	dst := make([]float32, r)
	FillRand(&w, 1, 0.02)

	for b.Loop() {
		MatVec(dst, &w, x)
	}
}
