package tensor

// MatVec computes dst = w * x where w is [R x C] and x has length C.
func MatVec(dst []float32, w *Mat, x []float32) {
	if w.R == 0 || w.C == 0 {
		return
	}
	if len(dst) < w.R || len(x) < w.C {
		panic("matvec shape mismatch")
	}
	for i := 0; i < w.R; i++ {
		row := w.Data[i*w.Stride : i*w.Stride+w.C]
		var sum float32
		j := 0
		for ; j+3 < w.C; j += 4 {
			sum += row[j]*x[j] + row[j+1]*x[j+1] + row[j+2]*x[j+2] + row[j+3]*x[j+3]
		}
		for ; j < w.C; j++ {
			sum += row[j] * x[j]
		}
		dst[i] = sum
	}
}

// Linear computes dst = w * x + bias. A nil bias is treated as zeros.
func Linear(dst []float32, w *Mat, x, bias []float32) {
	MatVec(dst, w, x)
	if bias != nil {
		Add(dst[:w.R], bias)
	}
}
