package vectorizer

// Vector is a sparse row in the term-weight space. Indices are sorted
// ascending and hold the vocabulary dimensions with nonzero weight.
type Vector struct {
	Indices []int32
	Values  []float64
}

func (v Vector) IsEmpty() bool {
	return len(v.Indices) == 0
}

// Dot computes the sparse dot product of two index-sorted vectors.
func (v Vector) Dot(o Vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.Indices) && j < len(o.Indices) {
		switch {
		case v.Indices[i] == o.Indices[j]:
			sum += v.Values[i] * o.Values[j]
			i++
			j++
		case v.Indices[i] < o.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Dense expands the vector into a dense float32 slice of length dims.
func (v Vector) Dense(dims int) []float32 {
	out := make([]float32, dims)
	for i, idx := range v.Indices {
		if int(idx) < dims {
			out[idx] = float32(v.Values[i])
		}
	}
	return out
}

// Matrix holds one Vector per corpus document, aligned by document id.
type Matrix struct {
	Dims int
	Rows []Vector
}

func (m *Matrix) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Rows)
}
