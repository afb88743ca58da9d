package probe

import (
	"fmt"
	"strconv"
	"strings"
)

// MockConn is an in-memory Conn for tests. It answers oneshot queries from
// a configurable current function and records every command sent.
type MockConn struct {
	Commands []string
	Queries  []string
	Closed   bool

	// CurrentFor maps a set voltage to the measured current. Defaults to an
	// ideal 100 Ohm resistor.
	CurrentFor func(v float64) float64

	// Replies overrides raw replies per command prefix (for hello/temp).
	Replies map[string]string

	// Err, when set, fails every operation.
	Err error
}

var _ Conn = (*MockConn)(nil)

func NewMockConn() *MockConn {
	return &MockConn{
		CurrentFor: func(v float64) float64 { return v / 100.0 },
		Replies:    map[string]string{},
	}
}

func (m *MockConn) Command(cmd string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Commands = append(m.Commands, cmd)
	return nil
}

func (m *MockConn) Query(cmd string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.Queries = append(m.Queries, cmd)

	for prefix, reply := range m.Replies {
		if strings.HasPrefix(cmd, prefix) {
			return reply, nil
		}
	}

	if rest, ok := strings.CutPrefix(cmd, "smu1 oneshot "); ok {
		v, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return "", fmt.Errorf("mock: bad oneshot command %q", cmd)
		}
		i := m.CurrentFor(v)
		return fmt.Sprintf("[%s,%s]",
			strconv.FormatFloat(v, 'g', -1, 64),
			strconv.FormatFloat(i, 'g', -1, 64)), nil
	}

	return "", fmt.Errorf("mock: no reply configured for %q", cmd)
}

func (m *MockConn) Close() error {
	m.Closed = true
	return nil
}
