// Package trajectory records simulation runs and serializes them in the
// length-prefixed wire format the playback tooling reads.
package trajectory

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Version is the current file format version.
const Version = 1

// Top-level field numbers.
const (
	fieldMeta       = 1
	fieldFrameCount = 2
	fieldStates     = 3
)

// Meta field numbers.
const (
	metaVersion     = 1
	metaCreatedAt   = 2
	metaDT          = 3
	metaStride      = 4
	metaMaxFrames   = 5
	metaModelID     = 6
	metaAlgorithmID = 7
	metaPlane2D     = 8
	metaAgentCount  = 9
	metaFields      = 10
	metaGroupColors = 11
	metaGroups      = 12
	metaParams      = 13
)

// GroupColor sub-message field numbers.
const (
	groupColorGroup = 1
	groupColorColor = 2
)

// Param sub-message field numbers.
const (
	paramKey   = 1
	paramValue = 2
)

// ErrCorrupt reports a malformed trajectory file.
var ErrCorrupt = errors.New("trajectory: corrupt file")

// GroupColor assigns a render color to a group id.
type GroupColor struct {
	Group uint32 `csv:"group"`
	Color string `csv:"color"`
}

// Param is one recorded algorithm parameter.
type Param struct {
	Key   string
	Value float64
}

// Meta describes a recorded run.
type Meta struct {
	Version     uint32
	CreatedAt   string
	DT          float64
	Stride      uint32
	MaxFrames   uint32
	ModelID     string
	AlgorithmID string
	Plane2D     bool
	AgentCount  uint32
	Fields      []string
	GroupColors []GroupColor
	Groups      []uint32
	Params      []Param
}

// Trajectory is a decoded (or to-be-encoded) recording. States are
// row-major [frame][agent][field].
type Trajectory struct {
	Meta       Meta
	FrameCount uint32
	States     []float32
}

// Encode serializes the trajectory into the wire format.
func (t *Trajectory) Encode() []byte {
	meta := appendMeta(nil, &t.Meta)

	buf := protowire.AppendTag(nil, fieldMeta, protowire.BytesType)
	buf = protowire.AppendBytes(buf, meta)

	buf = protowire.AppendTag(buf, fieldFrameCount, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(t.FrameCount))

	states := make([]byte, 0, len(t.States)*4)
	for _, f := range t.States {
		states = protowire.AppendFixed32(states, math.Float32bits(f))
	}
	buf = protowire.AppendTag(buf, fieldStates, protowire.BytesType)
	buf = protowire.AppendBytes(buf, states)
	return buf
}

func appendMeta(buf []byte, m *Meta) []byte {
	buf = protowire.AppendTag(buf, metaVersion, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(m.Version))
	buf = appendString(buf, metaCreatedAt, m.CreatedAt)
	buf = protowire.AppendTag(buf, metaDT, protowire.Fixed64Type)
	buf = protowire.AppendFixed64(buf, math.Float64bits(m.DT))
	buf = protowire.AppendTag(buf, metaStride, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(m.Stride))
	buf = protowire.AppendTag(buf, metaMaxFrames, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(m.MaxFrames))
	buf = appendString(buf, metaModelID, m.ModelID)
	buf = appendString(buf, metaAlgorithmID, m.AlgorithmID)
	buf = protowire.AppendTag(buf, metaPlane2D, protowire.VarintType)
	if m.Plane2D {
		buf = protowire.AppendVarint(buf, 1)
	} else {
		buf = protowire.AppendVarint(buf, 0)
	}
	buf = protowire.AppendTag(buf, metaAgentCount, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(m.AgentCount))
	for _, f := range m.Fields {
		buf = appendString(buf, metaFields, f)
	}
	for _, gc := range m.GroupColors {
		sub := protowire.AppendTag(nil, groupColorGroup, protowire.VarintType)
		sub = protowire.AppendVarint(sub, uint64(gc.Group))
		sub = appendString(sub, groupColorColor, gc.Color)
		buf = protowire.AppendTag(buf, metaGroupColors, protowire.BytesType)
		buf = protowire.AppendBytes(buf, sub)
	}
	if len(m.Groups) > 0 {
		var packed []byte
		for _, g := range m.Groups {
			packed = protowire.AppendVarint(packed, uint64(g))
		}
		buf = protowire.AppendTag(buf, metaGroups, protowire.BytesType)
		buf = protowire.AppendBytes(buf, packed)
	}
	for _, p := range m.Params {
		sub := appendString(nil, paramKey, p.Key)
		sub = protowire.AppendTag(sub, paramValue, protowire.Fixed64Type)
		sub = protowire.AppendFixed64(sub, math.Float64bits(p.Value))
		buf = protowire.AppendTag(buf, metaParams, protowire.BytesType)
		buf = protowire.AppendBytes(buf, sub)
	}
	return buf
}

func appendString(buf []byte, num protowire.Number, s string) []byte {
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendString(buf, s)
}

// Decode parses a trajectory file. Missing dimensions are inferred from
// the invariant agentCount*fieldCount*frameCount*4 == len(states).
func Decode(data []byte) (*Trajectory, error) {
	t := &Trajectory{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: bad tag", ErrCorrupt)
		}
		data = data[n:]
		switch num {
		case fieldMeta:
			body, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: bad meta", ErrCorrupt)
			}
			data = data[n:]
			if err := decodeMeta(body, &t.Meta); err != nil {
				return nil, err
			}
		case fieldFrameCount:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: bad frame count", ErrCorrupt)
			}
			data = data[n:]
			t.FrameCount = uint32(v)
		case fieldStates:
			body, n := protowire.ConsumeBytes(data)
			if n < 0 || len(body)%4 != 0 {
				return nil, fmt.Errorf("%w: bad states", ErrCorrupt)
			}
			data = data[n:]
			t.States = make([]float32, 0, len(body)/4)
			for len(body) > 0 {
				bits, n := protowire.ConsumeFixed32(body)
				if n < 0 {
					return nil, fmt.Errorf("%w: bad states", ErrCorrupt)
				}
				body = body[n:]
				t.States = append(t.States, math.Float32frombits(uint32(bits)))
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("%w: bad field %d", ErrCorrupt, num)
			}
			data = data[n:]
		}
	}
	if err := t.inferDimensions(); err != nil {
		return nil, err
	}
	return t, nil
}

func decodeMeta(data []byte, m *Meta) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: bad meta tag", ErrCorrupt)
		}
		data = data[n:]

		consumed := -1
		switch num {
		case metaVersion, metaStride, metaMaxFrames, metaAgentCount, metaPlane2D:
			v, n := protowire.ConsumeVarint(data)
			consumed = n
			if n >= 0 {
				switch num {
				case metaVersion:
					m.Version = uint32(v)
				case metaStride:
					m.Stride = uint32(v)
				case metaMaxFrames:
					m.MaxFrames = uint32(v)
				case metaAgentCount:
					m.AgentCount = uint32(v)
				case metaPlane2D:
					m.Plane2D = v != 0
				}
			}
		case metaDT:
			v, n := protowire.ConsumeFixed64(data)
			consumed = n
			if n >= 0 {
				m.DT = math.Float64frombits(v)
			}
		case metaCreatedAt, metaModelID, metaAlgorithmID, metaFields:
			s, n := protowire.ConsumeString(data)
			consumed = n
			if n >= 0 {
				switch num {
				case metaCreatedAt:
					m.CreatedAt = s
				case metaModelID:
					m.ModelID = s
				case metaAlgorithmID:
					m.AlgorithmID = s
				case metaFields:
					m.Fields = append(m.Fields, s)
				}
			}
		case metaGroups:
			body, n := protowire.ConsumeBytes(data)
			consumed = n
			for len(body) > 0 {
				v, k := protowire.ConsumeVarint(body)
				if k < 0 {
					return fmt.Errorf("%w: bad groups", ErrCorrupt)
				}
				body = body[k:]
				m.Groups = append(m.Groups, uint32(v))
			}
		case metaGroupColors:
			body, n := protowire.ConsumeBytes(data)
			consumed = n
			if n >= 0 {
				gc, err := decodeGroupColor(body)
				if err != nil {
					return err
				}
				m.GroupColors = append(m.GroupColors, gc)
			}
		case metaParams:
			body, n := protowire.ConsumeBytes(data)
			consumed = n
			if n >= 0 {
				p, err := decodeParam(body)
				if err != nil {
					return err
				}
				m.Params = append(m.Params, p)
			}
		default:
			consumed = protowire.ConsumeFieldValue(num, typ, data)
		}
		if consumed < 0 {
			return fmt.Errorf("%w: bad meta field %d", ErrCorrupt, num)
		}
		data = data[consumed:]
	}
	return nil
}

func decodeGroupColor(data []byte) (GroupColor, error) {
	var gc GroupColor
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return gc, fmt.Errorf("%w: bad group color", ErrCorrupt)
		}
		data = data[n:]
		switch num {
		case groupColorGroup:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return gc, fmt.Errorf("%w: bad group color", ErrCorrupt)
			}
			data = data[n:]
			gc.Group = uint32(v)
		case groupColorColor:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return gc, fmt.Errorf("%w: bad group color", ErrCorrupt)
			}
			data = data[n:]
			gc.Color = s
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return gc, fmt.Errorf("%w: bad group color", ErrCorrupt)
			}
			data = data[n:]
		}
	}
	return gc, nil
}

func decodeParam(data []byte) (Param, error) {
	var p Param
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return p, fmt.Errorf("%w: bad param", ErrCorrupt)
		}
		data = data[n:]
		switch num {
		case paramKey:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return p, fmt.Errorf("%w: bad param", ErrCorrupt)
			}
			data = data[n:]
			p.Key = s
		case paramValue:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return p, fmt.Errorf("%w: bad param", ErrCorrupt)
			}
			data = data[n:]
			p.Value = math.Float64frombits(v)
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return p, fmt.Errorf("%w: bad param", ErrCorrupt)
			}
			data = data[n:]
		}
	}
	return p, nil
}

// inferDimensions back-fills agentCount or frameCount from
// len(states) = agentCount * fieldCount * frameCount.
func (t *Trajectory) inferDimensions() error {
	fields := len(t.Meta.Fields)
	if fields == 0 {
		return nil
	}
	total := len(t.States)
	switch {
	case t.Meta.AgentCount == 0 && t.FrameCount != 0:
		if d := fields * int(t.FrameCount); d > 0 && total%d == 0 {
			t.Meta.AgentCount = uint32(total / d)
		}
	case t.FrameCount == 0 && t.Meta.AgentCount != 0:
		if d := fields * int(t.Meta.AgentCount); d > 0 && total%d == 0 {
			t.FrameCount = uint32(total / d)
		}
	}
	if int(t.Meta.AgentCount)*fields*int(t.FrameCount) != total {
		return fmt.Errorf("%w: states length %d does not match %d agents x %d fields x %d frames",
			ErrCorrupt, total, t.Meta.AgentCount, fields, t.FrameCount)
	}
	return nil
}

// Frame returns the state slice of one frame.
func (t *Trajectory) Frame(i int) []float32 {
	stride := int(t.Meta.AgentCount) * len(t.Meta.Fields)
	return t.States[i*stride : (i+1)*stride]
}
