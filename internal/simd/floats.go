package simd

var (
	dotImpl      = dotGeneric
	dotBatchImpl = dotBatchGeneric
	scaleImpl    = scaleGeneric
)

// Dot calculates the dot product of two vectors.
//
// SAFETY: This function assumes len(a) == len(b).
// Callers MUST ensure lengths match.
func Dot(a, b []float32) float32 {
	return dotImpl(a, b)
}

// DotBatch calculates dot products of query against a batch of vectors.
// targets is a flattened array of N vectors, each of dimension dim.
// out receives min(len(out), len(targets)/dim) results.
func DotBatch(query []float32, targets []float32, dim int, out []float32) {
	dotBatchImpl(query, targets, dim, out)
}

// ScaleInPlace multiplies all elements of a by scalar.
func ScaleInPlace(a []float32, scalar float32) {
	scaleImpl(a, scalar)
}

func dotGeneric(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	b = b[:n]
	a = a[:n]

	var s0, s1, s2, s3 float32
	i := 0
	for ; i+4 <= n; i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	for ; i < n; i++ {
		s0 += a[i] * b[i]
	}
	return (s0 + s1) + (s2 + s3)
}

func dotBatchGeneric(query []float32, targets []float32, dim int, out []float32) {
	if dim <= 0 || len(out) == 0 || len(query) < dim {
		return
	}

	q := query[:dim]
	n := min(len(out), len(targets)/dim)
	for i := 0; i < n; i++ {
		offset := i * dim
		out[i] = dotImpl(q, targets[offset:offset+dim])
	}
}

func scaleGeneric(a []float32, scalar float32) {
	for i := range a {
		a[i] *= scalar
	}
}
