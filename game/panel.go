package game

import (
	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/swarm/sim"
)

// Panel is the raygui control strip: algorithm switcher, 2D toggle,
// and the error of the last rejected algorithm switch.
type Panel struct {
	sim *sim.Sim

	algoIDs   []string
	algoIndex int32
	dropOpen  bool
	plane2D   bool
	lastErr   string
}

// NewPanel builds the panel for the engine's permitted algorithms.
func NewPanel(s *sim.Sim) *Panel {
	entries, _ := sim.AlgorithmsForModel(s.ModelID())
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	p := &Panel{sim: s, algoIDs: ids, plane2D: s.Plane2D()}
	for i, id := range ids {
		if id == s.AlgorithmID() {
			p.algoIndex = int32(i)
		}
	}
	return p
}

// Draw renders the panel and applies any edits to the engine.
func (p *Panel) Draw() {
	gui.GroupBox(rl.NewRectangle(10, 10, 220, 110), "controls")

	plane := gui.CheckBox(rl.NewRectangle(20, 30, 18, 18), "2D plane", p.plane2D)
	if plane != p.plane2D {
		p.plane2D = plane
		p.sim.SetPlane2D(plane)
	}

	if gui.DropdownBox(rl.NewRectangle(20, 56, 180, 24), joinIDs(p.algoIDs), &p.algoIndex, p.dropOpen) {
		p.dropOpen = !p.dropOpen
		if !p.dropOpen {
			if err := p.sim.SetAlgorithm(p.algoIDs[p.algoIndex]); err != nil {
				p.lastErr = err.Error()
			} else {
				p.lastErr = ""
			}
		}
	}

	if p.lastErr != "" {
		rl.DrawText(p.lastErr, 20, 88, 12, rl.Red)
	}
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ";"
		}
		out += id
	}
	return out
}
