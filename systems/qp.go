package systems

import (
	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/swarm/vmath"
)

// qpInfeasibleTol is the residual violation at which the solve gives up
// and falls back to the box-clipped nominal. Smaller residuals are the
// normal tail of a truncated dual iteration.
const qpInfeasibleTol = 1e-4

// QPProblem is a per-agent quadratic program over a 3-vector control u
// and an optional scalar slack s:
//
//	minimize   0.5*||u - unom||^2 + slackWeight * s^2
//	subject to a_k . u - sCoeff_k * s <= b_k   (k rows)
//	           uMin <= u <= uMax
//	           0 <= s <= slackMax
//
// Rows are assembled into a dense matrix per agent and reused across
// ticks through the workspace.
type QPProblem struct {
	UNom        vmath.Vec3
	UMin, UMax  vmath.Vec3
	UseSlack    bool
	SlackWeight float64
	SlackMax    float64
	Iters       int

	rows   *mat.Dense // k x 3 constraint normals
	b      *mat.VecDense
	sCoeff []float64 // per-row slack coefficient (0 or 1)
	lambda []float64 // dual workspace, reused across solves
	k      int
}

// Reset clears the constraint rows, keeping capacity.
func (q *QPProblem) Reset() {
	q.k = 0
}

// AddRow appends the constraint a.u - sCoeff*s <= b. Rows with a == 0
// are kept; the solver treats them as pure bounds on the slack.
func (q *QPProblem) AddRow(a vmath.Vec3, b float64, withSlack bool) {
	if q.rows == nil || q.k >= q.rows.RawMatrix().Rows {
		grow := 8
		if q.rows != nil {
			grow = q.rows.RawMatrix().Rows * 2
		}
		rows := mat.NewDense(grow, 3, nil)
		bvec := mat.NewVecDense(grow, nil)
		sc := make([]float64, grow)
		if q.rows != nil {
			for i := 0; i < q.k; i++ {
				rows.SetRow(i, q.rows.RawRowView(i))
				bvec.SetVec(i, q.b.AtVec(i))
				sc[i] = q.sCoeff[i]
			}
		}
		q.rows, q.b, q.sCoeff = rows, bvec, sc
	}
	q.rows.SetRow(q.k, []float64{a.X, a.Y, a.Z})
	q.b.SetVec(q.k, b)
	if withSlack && q.UseSlack {
		q.sCoeff[q.k] = 1
	} else {
		q.sCoeff[q.k] = 0
	}
	q.k++
}

// QPResult reports the solved control and diagnostics.
type QPResult struct {
	U          vmath.Vec3
	Slack      float64
	Active     int
	Infeasible bool
}

// Solve runs a fixed budget of projected dual coordinate sweeps
// (Gauss-Seidel over constraint rows) and recovers the primal by box
// projection. The iteration count is a static budget: determinism and
// bounded latency are chosen over optimality. When the final point
// still violates a row beyond what slack absorbs, the box-clipped
// nominal is returned and the result is flagged infeasible.
func (q *QPProblem) Solve() QPResult {
	boxed := q.UNom.ClampBox(q.UMin, q.UMax)
	if q.k == 0 {
		return QPResult{U: boxed}
	}

	iters := q.Iters
	if iters < 1 {
		iters = 1
	}

	if cap(q.lambda) < q.k {
		q.lambda = make([]float64, q.k)
	}
	lambda := q.lambda[:q.k]
	for i := range lambda {
		lambda[i] = 0
	}
	u := boxed
	s := 0.0

	for sweep := 0; sweep < iters; sweep++ {
		for r := 0; r < q.k; r++ {
			a := q.rowVec(r)
			// Diagonal of the dual Hessian: the slack contributes
			// c^2/(2w) curvature through s = sum(lambda*c)/(2w).
			normSq := a.NormSq()
			if c := q.sCoeff[r]; c != 0 && q.UseSlack && q.SlackWeight > 0 {
				normSq += c * c / (2 * q.SlackWeight)
			}
			if normSq == 0 {
				continue
			}
			// Residual of row r at the current primal point.
			res := a.Dot(u) - q.sCoeff[r]*s - q.b.AtVec(r)
			lambda[r] += res / normSq
			if lambda[r] < 0 {
				lambda[r] = 0
			}

			u, s = q.primalFrom(lambda)
		}
	}

	u, s = q.primalFrom(lambda)

	active := 0
	worst := 0.0
	for r := 0; r < q.k; r++ {
		a := q.rowVec(r)
		res := a.Dot(u) - q.sCoeff[r]*s - q.b.AtVec(r)
		if res > worst {
			worst = res
		}
		if lambda[r] > 0 {
			active++
		}
	}
	if worst > qpInfeasibleTol {
		return QPResult{U: boxed, Slack: s, Active: active, Infeasible: true}
	}
	return QPResult{U: u, Slack: s, Active: active}
}

// primalFrom recovers (u, s) from the duals: the unconstrained minimizer
// of the Lagrangian projected onto the box and the slack interval.
func (q *QPProblem) primalFrom(lambda []float64) (vmath.Vec3, float64) {
	u := q.UNom
	sNum := 0.0
	for r := 0; r < len(lambda); r++ {
		if lambda[r] == 0 {
			continue
		}
		u = u.Sub(q.rowVec(r).Scale(lambda[r]))
		sNum += lambda[r] * q.sCoeff[r]
	}
	u = u.ClampBox(q.UMin, q.UMax)

	s := 0.0
	if q.UseSlack && q.SlackWeight > 0 {
		s = vmath.Clamp(sNum/(2*q.SlackWeight), 0, q.SlackMax)
	}
	return u, s
}

func (q *QPProblem) rowVec(r int) vmath.Vec3 {
	row := q.rows.RawRowView(r)
	return vmath.Vec3{X: row[0], Y: row[1], Z: row[2]}
}
