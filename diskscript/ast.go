package diskscript

import "fmt"

// expr is always a literal integer constant: the original grammar never
// grew arithmetic, so there is nothing to evaluate beyond the value itself.
type expr struct {
	value int32
}

type stmt interface {
	execute(e *Engine) error
}

type stmtBlock struct {
	children []stmt
}

func (s *stmtBlock) execute(e *Engine) error {
	for _, c := range s.children {
		if err := c.execute(e); err != nil {
			return err
		}
	}
	return nil
}

type stmtTrack struct {
	track, side *expr // side nil means side 0
	child       stmt
}

func (s *stmtTrack) execute(e *Engine) error {
	side := int32(0)
	if s.side != nil {
		side = s.side.value
	}
	if err := e.BeginTrack(int(s.track.value), int(side)); err != nil {
		return err
	}
	if err := s.child.execute(e); err != nil {
		return err
	}
	return e.EndTrack()
}

type stmtRepeat struct {
	count *expr
	child stmt
}

func (s *stmtRepeat) execute(e *Engine) error {
	for i := int32(0); i < s.count.value; i++ {
		if err := s.child.execute(e); err != nil {
			return err
		}
	}
	return nil
}

type stmtByte struct {
	special bool
	value   *expr
}

func (s *stmtByte) execute(e *Engine) error {
	if s.value.value < 0 || s.value.value > 255 {
		return fmt.Errorf("invalid data byte: %d", s.value.value)
	}
	return e.EmitByte(s.special, byte(s.value.value))
}

type stmtBytes struct {
	data []byte
}

func (s *stmtBytes) execute(e *Engine) error {
	for _, b := range s.data {
		if err := e.EmitByte(false, b); err != nil {
			return err
		}
	}
	return nil
}

type stmtPadBits struct {
	count, value *expr
}

func (s *stmtPadBits) execute(e *Engine) error {
	if s.count.value < 0 || s.count.value > 1000000 {
		return fmt.Errorf("invalid pad bit count: %d", s.count.value)
	}
	if s.value.value != 0 && s.value.value != 1 {
		return fmt.Errorf("invalid pad bit value: %d", s.value.value)
	}
	return e.EmitPadBits(uint32(s.count.value), s.value.value != 0)
}

type stmtCRCBegin struct{}

func (s *stmtCRCBegin) execute(e *Engine) error {
	e.BeginCRC()
	return nil
}

type stmtCRCEnd struct{}

func (s *stmtCRCEnd) execute(e *Engine) error {
	return e.EndCRC()
}

type stmtFlux struct {
	count *expr
}

func (s *stmtFlux) execute(e *Engine) error {
	if s.count.value < 1 || s.count.value > 1000000 {
		return fmt.Errorf("invalid cell delay: %d", s.count.value)
	}
	e.EmitCellDelay(uint32((int64(s.count.value)*160*256 + 50) / 100))
	return nil
}

type stmtNoFlux struct {
	count *expr
}

func (s *stmtNoFlux) execute(e *Engine) error {
	if s.count.value < 1 || s.count.value > 1000000 {
		return fmt.Errorf("invalid cell delay: %d", s.count.value)
	}
	e.EmitCellDelayNoFlux(uint32((int64(s.count.value)*160*256 + 50) / 100))
	return nil
}

type stmtGeometry struct {
	tracks, sides *expr
}

func (s *stmtGeometry) execute(e *Engine) error {
	if s.tracks.value < 1 || s.tracks.value > 84 {
		return fmt.Errorf("invalid track count: %d", s.tracks.value)
	}
	if s.sides.value < 1 || s.sides.value > 2 {
		return fmt.Errorf("invalid side count: %d", s.sides.value)
	}
	return e.SetGeometry(int(s.tracks.value), int(s.sides.value))
}
