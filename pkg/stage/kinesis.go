package stage

import (
	"encoding/binary"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// Thorlabs APT message IDs (subset used by this station).
const (
	msgSetChanEnableState = 0x0210
	msgMoveHome           = 0x0443
	msgMoveHomed          = 0x0444
	msgMoveAbsolute       = 0x0453
	msgMoveCompleted      = 0x0464
	msgReqPosCounter      = 0x0411
	msgGetPosCounter      = 0x0412
	msgReqStatusBits      = 0x0429
	msgGetStatusBits      = 0x042A
)

const (
	aptDestMotherboard = 0x50
	aptDestLongPacket  = 0x80 // OR'd into dest when a data packet follows
	aptSourceHost      = 0x01

	aptChannel = 1

	// Homed flag in the status bits word.
	statusBitHomed = 0x00000400
)

const (
	kinesisBaudRate = 115200

	moveTimeout  = 60 * time.Second
	homeTimeout  = 120 * time.Second
	replyTimeout = 5 * time.Second
)

// KinesisConn is a Conn over a Thorlabs Kinesis (APT protocol) motor
// controller on a serial port.
type KinesisConn struct {
	port serial.Port
	name string

	now func() time.Time // test seam
}

var _ Conn = (*KinesisConn)(nil)

// OpenKinesis opens the serial port and returns a connection to the motor
// controller.
func OpenKinesis(portName string) (*KinesisConn, error) {
	mode := &serial.Mode{
		BaudRate: kinesisBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open stage port %s", portName)
	}
	if err := port.SetReadTimeout(replyTimeout); err != nil {
		_ = port.Close()
		return nil, pkgerrors.Wrap(err, "failed to set stage read timeout")
	}

	logrus.WithField("port", portName).Debug("stage serial port open")
	return &KinesisConn{port: port, name: portName}, nil
}

func (c *KinesisConn) EnableChannel() error {
	// Header-only message: param1 = channel, param2 = 0x01 (enable).
	return c.writeHeader(msgSetChanEnableState, aptChannel, 0x01)
}

func (c *KinesisConn) Home() error {
	if err := c.writeHeader(msgMoveHome, aptChannel, 0); err != nil {
		return err
	}
	_, err := c.waitFor(msgMoveHomed, homeTimeout)
	return pkgerrors.Wrap(err, "homing did not complete")
}

func (c *KinesisConn) MoveTo(steps int) error {
	if err := c.writeData(msgMoveAbsolute, encodeMoveAbsolute(aptChannel, steps)); err != nil {
		return err
	}
	_, err := c.waitFor(msgMoveCompleted, moveTimeout)
	return pkgerrors.Wrapf(err, "move to %d steps did not complete", steps)
}

func (c *KinesisConn) Position() (int, error) {
	if err := c.writeHeader(msgReqPosCounter, aptChannel, 0); err != nil {
		return 0, err
	}
	data, err := c.waitFor(msgGetPosCounter, replyTimeout)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "no position reply")
	}
	if len(data) < 6 {
		return 0, fmt.Errorf("short position reply: %d bytes", len(data))
	}
	return int(int32(binary.LittleEndian.Uint32(data[2:6]))), nil
}

func (c *KinesisConn) IsHomed() (bool, error) {
	if err := c.writeHeader(msgReqStatusBits, aptChannel, 0); err != nil {
		return false, err
	}
	data, err := c.waitFor(msgGetStatusBits, replyTimeout)
	if err != nil {
		return false, pkgerrors.Wrap(err, "no status reply")
	}
	if len(data) < 6 {
		return false, fmt.Errorf("short status reply: %d bytes", len(data))
	}
	status := binary.LittleEndian.Uint32(data[2:6])
	return status&statusBitHomed != 0, nil
}

func (c *KinesisConn) Close() error {
	return c.port.Close()
}

// encodeMoveAbsolute builds the move-absolute data packet: channel ident
// followed by the target position, both little-endian.
func encodeMoveAbsolute(channel uint16, steps int) []byte {
	data := make([]byte, 6)
	binary.LittleEndian.PutUint16(data[0:2], channel)
	binary.LittleEndian.PutUint32(data[2:6], uint32(int32(steps)))
	return data
}

// writeHeader sends a 6-byte header-only message.
func (c *KinesisConn) writeHeader(msgID uint16, param1, param2 byte) error {
	buf := make([]byte, 6)
	binary.LittleEndian.PutUint16(buf[0:2], msgID)
	buf[2] = param1
	buf[3] = param2
	buf[4] = aptDestMotherboard
	buf[5] = aptSourceHost

	logrus.WithFields(logrus.Fields{
		"msgID": fmt.Sprintf("0x%04X", msgID),
	}).Trace("stage write")

	_, err := c.port.Write(buf)
	return pkgerrors.Wrap(err, "stage write failed")
}

// writeData sends a header plus trailing data packet.
func (c *KinesisConn) writeData(msgID uint16, data []byte) error {
	buf := make([]byte, 6, 6+len(data))
	binary.LittleEndian.PutUint16(buf[0:2], msgID)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(data)))
	buf[4] = aptDestMotherboard | aptDestLongPacket
	buf[5] = aptSourceHost
	buf = append(buf, data...)

	logrus.WithFields(logrus.Fields{
		"msgID": fmt.Sprintf("0x%04X", msgID),
		"len":   len(data),
	}).Trace("stage write")

	_, err := c.port.Write(buf)
	return pkgerrors.Wrap(err, "stage write failed")
}

// waitFor reads messages until one with the wanted ID arrives, returning its
// data packet (empty for header-only messages). Unrelated controller chatter
// is discarded. The controller stays completely silent during homing and
// long moves, so idle reads are tolerated until the deadline.
func (c *KinesisConn) waitFor(msgID uint16, timeout time.Duration) ([]byte, error) {
	deadline := c.clock().Add(timeout)
	for {
		id, data, err := c.readMessage(deadline)
		if err != nil {
			return nil, err
		}
		if id == msgID {
			return data, nil
		}

		logrus.WithFields(logrus.Fields{
			"msgID": fmt.Sprintf("0x%04X", id),
		}).Trace("discarding unexpected stage message")
	}
}

func (c *KinesisConn) readMessage(deadline time.Time) (uint16, []byte, error) {
	header := make([]byte, 6)
	if err := c.readFull(header, deadline); err != nil {
		return 0, nil, err
	}

	msgID := binary.LittleEndian.Uint16(header[0:2])
	if header[4]&aptDestLongPacket == 0 {
		return msgID, nil, nil
	}

	length := binary.LittleEndian.Uint16(header[2:4])
	data := make([]byte, length)
	if err := c.readFull(data, deadline); err != nil {
		return 0, nil, err
	}
	return msgID, data, nil
}

// readFull fills buf. The port read returns a zero-byte result every
// replyTimeout; with nothing accumulated that is only an idle tick, checked
// against the caller's deadline. Going silent in the middle of a frame is a
// fault regardless of the deadline.
func (c *KinesisConn) readFull(buf []byte, deadline time.Time) error {
	read := 0
	for read < len(buf) {
		n, err := c.port.Read(buf[read:])
		if err != nil {
			return pkgerrors.Wrap(err, "stage read failed")
		}
		if n == 0 {
			if read > 0 {
				return fmt.Errorf("stage read stalled after %d/%d bytes", read, len(buf))
			}
			if c.clock().After(deadline) {
				return fmt.Errorf("timed out waiting for stage reply")
			}
			continue
		}
		read += n
	}
	return nil
}

func (c *KinesisConn) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}
