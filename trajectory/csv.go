package trajectory

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

// FrameRow is one agent-frame in flat CSV form. Diagnostic columns are
// zero for recordings made without a safety filter.
type FrameRow struct {
	Frame  int     `csv:"frame"`
	Agent  int     `csv:"agent"`
	Group  uint32  `csv:"group"`
	X      float32 `csv:"x"`
	Y      float32 `csv:"y"`
	Z      float32 `csv:"z"`
	VX     float32 `csv:"vx"`
	VY     float32 `csv:"vy"`
	VZ     float32 `csv:"vz"`
	UNomX  float32 `csv:"unom_x"`
	UNomY  float32 `csv:"unom_y"`
	UNomZ  float32 `csv:"unom_z"`
	UX     float32 `csv:"u_x"`
	UY     float32 `csv:"u_y"`
	UZ     float32 `csv:"u_z"`
	Slack  float32 `csv:"slack"`
	Active float32 `csv:"active"`
}

// ExportCSV flattens a trajectory to CSV rows, one per agent-frame.
func ExportCSV(t *Trajectory, w io.Writer) error {
	fields := len(t.Meta.Fields)
	agents := int(t.Meta.AgentCount)
	if fields == 0 || agents == 0 {
		return fmt.Errorf("trajectory: nothing to export")
	}

	rows := make([]FrameRow, 0, int(t.FrameCount)*agents)
	for f := 0; f < int(t.FrameCount); f++ {
		frame := t.Frame(f)
		for a := 0; a < agents; a++ {
			cells := frame[a*fields : (a+1)*fields]
			row := FrameRow{Frame: f, Agent: a}
			if a < len(t.Meta.Groups) {
				row.Group = t.Meta.Groups[a]
			}
			dst := []*float32{
				&row.X, &row.Y, &row.Z, &row.VX, &row.VY, &row.VZ,
				&row.UNomX, &row.UNomY, &row.UNomZ, &row.UX, &row.UY, &row.UZ,
				&row.Slack, &row.Active,
			}
			for i := 0; i < len(cells) && i < len(dst); i++ {
				*dst[i] = cells[i]
			}
			rows = append(rows, row)
		}
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("writing trajectory csv: %w", err)
	}
	return nil
}
