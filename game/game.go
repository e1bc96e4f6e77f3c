// Package game is the interactive raylib front-end: an orbit camera, a
// sphere per agent, and a small control panel. It only talks to the
// engine through the public sim API.
package game

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"
	"go.uber.org/zap"

	"github.com/pthm-cable/swarm/sim"
)

const (
	screenWidth  = 1280
	screenHeight = 720
	targetFPS    = 60
	agentRadius  = 0.18
)

// Game owns the window, camera, and the engine instance it renders.
type Game struct {
	sim    *sim.Sim
	log    *zap.Logger
	camera rl.Camera3D
	paused bool

	panel *Panel
}

// New creates the viewer around an engine instance.
func New(s *sim.Sim, log *zap.Logger) *Game {
	return &Game{
		sim: s,
		log: log,
		camera: rl.Camera3D{
			Position:   rl.NewVector3(18, 14, 18),
			Target:     rl.NewVector3(0, 0, 0),
			Up:         rl.NewVector3(0, 1, 0),
			Fovy:       45,
			Projection: rl.CameraPerspective,
		},
		panel: NewPanel(s),
	}
}

// Run opens the window and drives the render loop until close.
func (g *Game) Run() {
	rl.InitWindow(screenWidth, screenHeight, "swarm")
	defer rl.CloseWindow()
	rl.SetTargetFPS(targetFPS)

	g.log.Info("viewer started",
		zap.String("model", g.sim.ModelID()),
		zap.String("algorithm", g.sim.AlgorithmID()),
		zap.Int("agents", g.sim.Len()),
	)

	for !rl.WindowShouldClose() {
		g.update()
		g.draw()
	}

	g.log.Info("viewer closed",
		zap.Float64("sim_time", g.sim.Time()),
		zap.Uint64("numerical_faults", g.sim.NumericalFaults()),
		zap.Uint64("infeasible_qp", g.sim.InfeasibleQP()),
	)
}

func (g *Game) update() {
	if rl.IsKeyPressed(rl.KeySpace) {
		g.paused = !g.paused
	}
	if rl.IsMouseButtonDown(rl.MouseRightButton) {
		rl.UpdateCamera(&g.camera, rl.CameraThirdPerson)
	}
	g.handleDrag()

	if !g.paused {
		g.sim.Tick()
	}
}

// handleDrag lets the user grab the nearest agent with the left mouse
// button and drop it on the mouse ray at the camera-to-target distance.
func (g *Game) handleDrag() {
	if !rl.IsMouseButtonDown(rl.MouseLeftButton) {
		return
	}
	ray := rl.GetMouseRay(rl.GetMousePosition(), g.camera)
	idx, hit := g.pickAgent(ray)
	if !hit {
		return
	}
	p := rl.Vector3Add(ray.Position, rl.Vector3Scale(ray.Direction, pickDistance(g.camera)))
	if err := g.sim.SetPositionAndVelocity(idx,
		float64(p.X), float64(p.Y), float64(p.Z), 0, 0, 0); err != nil {
		g.log.Warn("drag rejected", zap.Error(err))
	}
}

// pickAgent returns the agent whose center passes closest to the ray,
// within a generous grab radius.
func (g *Game) pickAgent(ray rl.Ray) (int, bool) {
	positions := g.sim.Positions()
	best, bestDist := -1, float32(0.8)
	for i := 0; i < g.sim.Len(); i++ {
		c := rl.NewVector3(positions[i*3], positions[i*3+1], positions[i*3+2])
		toC := rl.Vector3Subtract(c, ray.Position)
		along := rl.Vector3DotProduct(toC, ray.Direction)
		if along < 0 {
			continue
		}
		closest := rl.Vector3Add(ray.Position, rl.Vector3Scale(ray.Direction, along))
		d := rl.Vector3Length(rl.Vector3Subtract(c, closest))
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, best >= 0
}

func pickDistance(cam rl.Camera3D) float32 {
	return rl.Vector3Length(rl.Vector3Subtract(cam.Target, cam.Position))
}

func (g *Game) draw() {
	rl.BeginDrawing()
	rl.ClearBackground(rl.NewColor(16, 18, 24, 255))

	rl.BeginMode3D(g.camera)
	rl.DrawGrid(40, 1)
	g.drawAgents()
	rl.EndMode3D()

	g.panel.Draw()
	g.drawStatus()
	rl.EndDrawing()
}

func (g *Game) drawAgents() {
	positions := g.sim.Positions()
	groups := g.sim.Groups()
	for i := 0; i < g.sim.Len(); i++ {
		p := rl.NewVector3(positions[i*3], positions[i*3+1], positions[i*3+2])
		rl.DrawSphere(p, agentRadius, GroupColor(groups[i]))
	}
}

func (g *Game) drawStatus() {
	status := fmt.Sprintf("%s | %s | agents %d | t %.1fs",
		g.sim.ModelID(), g.sim.AlgorithmID(), g.sim.Len(), g.sim.Time())
	if g.paused {
		status += " | paused"
	}
	rl.DrawText(status, 10, screenHeight-24, 18, rl.RayWhite)
}
