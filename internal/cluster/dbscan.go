package cluster

// noiseLabel marks points not assigned to any dense neighborhood.
const noiseLabel = -1

// dbscan assigns density-based cluster labels over cosine distance.
// minSamples counts the point itself, matching the common library semantics
// the tuning parameters were calibrated against. Iteration is strictly in
// index order, so labels are deterministic for a fixed input.
func dbscan(vectors []Vector, eps float64, minSamples int) []int {
	n := len(vectors)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = noiseLabel
	}

	neighbors := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if CosineDistance(vectors[i], vectors[j]) <= eps {
				neighbors[i] = append(neighbors[i], j)
			}
		}
	}

	visited := make([]bool, n)
	next := 0
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		if len(neighbors[i]) < minSamples {
			continue // noise unless a later core point claims it
		}

		label := next
		next++
		labels[i] = label

		queue := append([]int(nil), neighbors[i]...)
		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]

			if labels[p] == noiseLabel {
				labels[p] = label
			}
			if visited[p] {
				continue
			}
			visited[p] = true

			if len(neighbors[p]) >= minSamples {
				queue = append(queue, neighbors[p]...)
			}
		}
	}

	return labels
}
