package stage

import "errors"

// MockConn is an in-memory Conn for tests. It records every commanded
// position and models the homed flag.
type MockConn struct {
	Enabled  bool
	Homed    bool
	Pos      int
	Moves    []int
	HomedCnt int
	Closed   bool

	// Optional fault injection.
	MoveErr error
	HomeErr error
}

var _ Conn = (*MockConn)(nil)

// NewMockConn returns a mock connection, already homed when homed is true.
func NewMockConn(homed bool) *MockConn {
	return &MockConn{Homed: homed}
}

func (m *MockConn) EnableChannel() error {
	m.Enabled = true
	return nil
}

func (m *MockConn) Home() error {
	if m.HomeErr != nil {
		return m.HomeErr
	}
	m.Homed = true
	m.Pos = 0
	m.HomedCnt++
	return nil
}

func (m *MockConn) MoveTo(steps int) error {
	if m.MoveErr != nil {
		return m.MoveErr
	}
	if m.Closed {
		return errors.New("mock conn closed")
	}
	m.Pos = steps
	m.Moves = append(m.Moves, steps)
	return nil
}

func (m *MockConn) Position() (int, error) {
	return m.Pos, nil
}

func (m *MockConn) IsHomed() (bool, error) {
	return m.Homed, nil
}

func (m *MockConn) Close() error {
	m.Closed = true
	return nil
}
