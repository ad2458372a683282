package vector

import "math"

// CosineSimilarity returns the cosine of the angle between a and b, in
// [-1, 1]. Vectors of different lengths or zero norm yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := l2norm(a), l2norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot(a, b) / (na * nb)
}

// CosineDistance returns 1 - CosineSimilarity(a, b). Zero means identical
// direction; values above 1 mean opposing direction.
func CosineDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func l2norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
