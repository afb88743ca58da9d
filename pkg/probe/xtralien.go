package probe

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

const (
	xtralienBaudRate = 115200
	queryTimeout     = 5 * time.Second
)

// XtralienConn is a Conn over an Xtralien X100 source-measure unit. The
// device accepts newline-terminated ASCII commands and replies with
// bracketed value lists, e.g. "[0.1,0.000199]".
type XtralienConn struct {
	port   serial.Port
	reader *bufio.Reader
	name   string
}

var _ Conn = (*XtralienConn)(nil)

// OpenXtralien opens the serial port and returns a connection to the SMU.
func OpenXtralien(portName string) (*XtralienConn, error) {
	mode := &serial.Mode{
		BaudRate: xtralienBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open probe port %s", portName)
	}
	if err := port.SetReadTimeout(queryTimeout); err != nil {
		_ = port.Close()
		return nil, pkgerrors.Wrap(err, "failed to set probe read timeout")
	}

	logrus.WithField("port", portName).Debug("probe serial port open")
	return &XtralienConn{
		port:   port,
		reader: bufio.NewReader(port),
		name:   portName,
	}, nil
}

func (c *XtralienConn) Command(cmd string) error {
	logrus.WithField("cmd", cmd).Trace("probe command")
	_, err := c.port.Write([]byte(cmd + "\n"))
	return pkgerrors.Wrapf(err, "probe command %q failed", cmd)
}

func (c *XtralienConn) Query(cmd string) (string, error) {
	if err := c.Command(cmd); err != nil {
		return "", err
	}

	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", pkgerrors.Wrapf(err, "no reply to probe query %q", cmd)
	}

	line = strings.TrimSpace(line)
	logrus.WithFields(logrus.Fields{
		"cmd":   cmd,
		"reply": line,
	}).Trace("probe reply")

	return line, nil
}

func (c *XtralienConn) Close() error {
	return c.port.Close()
}

// parsePair parses a "[v,i]" reply into its two values.
func parsePair(reply string) (float64, float64, error) {
	parts := strings.Split(trimBrackets(reply), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("unexpected SMU reply %q", reply)
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad voltage in SMU reply %q: %v", reply, err)
	}
	i, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad current in SMU reply %q: %v", reply, err)
	}
	return v, i, nil
}

func trimBrackets(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	return strings.TrimSpace(s)
}
