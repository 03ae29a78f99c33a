package cluster

import "sort"

// Membership is one vector's cluster assignment (spec.md 4.F step 3):
// cluster_id == -1 signals noise.
type Membership struct {
	ClusterID      int
	MembershipProb float64
}

// Cluster groups vectors by mutual density reachability: two points are
// density-connected when within radius eps of each other, and a cluster
// forms from any connected component with at least MinClusterSize
// members (the DBSCAN reduction of HDBSCAN when a single global eps is
// chosen from the data rather than swept hierarchically). eps is chosen
// as the (upper) median nearest-neighbor distance, so it adapts to the
// actual density of the reduced embedding space instead of a fixed
// constant. membership_prob is reported as a point's estimated local
// density relative to its cluster's densest member, standing in for
// HDBSCAN's stability-based membership probabilities.
func Cluster(vectors [][]float32, cfg Config) []Membership {
	n := len(vectors)
	out := make([]Membership, n)
	if n == 0 {
		return out
	}

	dist := pairwiseDistances(vectors)
	eps := medianNearestNeighborDistance(dist)

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if dist[i][j] <= eps {
				union(parent, i, j)
			}
		}
	}

	groups := map[int][]int{}
	for i := 0; i < n; i++ {
		root := find(parent, i)
		groups[root] = append(groups[root], i)
	}

	density := make([]float64, n)
	for i := 0; i < n; i++ {
		density[i] = localDensity(dist[i], eps)
	}

	clusterID := 0
	for _, members := range sortedGroups(groups) {
		if len(members) < cfg.MinClusterSize {
			for _, idx := range members {
				out[idx] = Membership{ClusterID: -1, MembershipProb: 0}
			}
			continue
		}
		maxDensity := 0.0
		for _, idx := range members {
			if density[idx] > maxDensity {
				maxDensity = density[idx]
			}
		}
		for _, idx := range members {
			prob := 1.0
			if maxDensity > 0 {
				prob = density[idx] / maxDensity
			}
			out[idx] = Membership{ClusterID: clusterID, MembershipProb: prob}
		}
		clusterID++
	}
	return out
}

func sortedGroups(groups map[int][]int) [][]int {
	roots := make([]int, 0, len(groups))
	for r := range groups {
		roots = append(roots, r)
	}
	sort.Ints(roots)
	out := make([][]int, len(roots))
	for i, r := range roots {
		members := append([]int(nil), groups[r]...)
		sort.Ints(members)
		out[i] = members
	}
	return out
}

func pairwiseDistances(vectors [][]float32) [][]float64 {
	n := len(vectors)
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dist := euclideanF64(vectors[i], vectors[j])
			d[i][j] = dist
			d[j][i] = dist
		}
	}
	return d
}

func euclideanF64(a, b []float32) float64 {
	var s float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		s += diff * diff
	}
	if s < 0 {
		s = 0
	}
	return sqrt(s)
}

func sqrt(v float64) float64 {
	if v == 0 {
		return 0
	}
	x := v
	for i := 0; i < 40; i++ {
		x = 0.5 * (x + v/x)
	}
	return x
}

func medianNearestNeighborDistance(dist [][]float64) float64 {
	n := len(dist)
	if n < 2 {
		return 0
	}
	nearest := make([]float64, n)
	for i := 0; i < n; i++ {
		best := -1.0
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if best < 0 || dist[i][j] < best {
				best = dist[i][j]
			}
		}
		nearest[i] = best
	}
	sorted := append([]float64(nil), nearest...)
	sort.Float64s(sorted)
	// Upper median: for an even count, take the larger middle value so the
	// radius is always some point's actual nearest-neighbor distance.
	return sorted[len(sorted)/2]
}

func localDensity(distRow []float64, eps float64) float64 {
	count := 0
	for _, d := range distRow {
		if d > 0 && d <= eps {
			count++
		}
	}
	return float64(count)
}

func find(parent []int, i int) int {
	for parent[i] != i {
		parent[i] = parent[parent[i]]
		i = parent[i]
	}
	return i
}

func union(parent []int, a, b int) {
	ra, rb := find(parent, a), find(parent, b)
	if ra != rb {
		parent[ra] = rb
	}
}
