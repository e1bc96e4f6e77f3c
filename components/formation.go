package components

import (
	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/swarm/vmath"
)

// Formation describes the consensus coupling for formation control:
// per-agent offsets from the leader, a symmetric 0/1 adjacency matrix,
// and the leader-link vector marking agents that track the leader
// directly.
type Formation struct {
	Delta      []vmath.Vec3
	Adjacency  *mat.SymDense
	LeaderLink []float64
}

// NewFormation builds a formation over n agents with zero offsets, a
// fully connected adjacency, and every agent linked to the leader.
func NewFormation(n int) *Formation {
	if n == 0 {
		return &Formation{}
	}
	adj := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			adj.SetSym(i, j, 1)
		}
	}
	link := make([]float64, n)
	for i := range link {
		link[i] = 1
	}
	return &Formation{
		Delta:      make([]vmath.Vec3, n),
		Adjacency:  adj,
		LeaderLink: link,
	}
}

// AutoOffsets derives formation offsets from the initial position
// spread: positions re-centered on their mean. The group keeps its
// initial shape relative to the leader.
func (f *Formation) AutoOffsets(pos []vmath.Vec3) {
	n := len(pos)
	if n == 0 {
		return
	}
	var mean vmath.Vec3
	for _, p := range pos {
		mean = mean.Add(p)
	}
	mean = mean.Scale(1 / float64(n))
	for i, p := range pos {
		f.Delta[i] = p.Sub(mean)
	}
}
