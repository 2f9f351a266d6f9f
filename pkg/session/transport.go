package session

import (
	"bufio"
	"fmt"
	"net"
	"strings"

	"github.com/remud/remud/pkg/color"
	"github.com/remud/remud/pkg/messaging"
)

// Transport is the byte-stream half of a connection: framed line input and
// rendered line output. The wire protocol/telnet negotiation itself is out
// of this module's scope; Conn below is a minimal line-framed
// implementation sufficient to drive the FSM over a raw TCP socket.
type Transport interface {
	ReadLine() (string, error)
	messaging.Session
	Close() error
}

// Conn adapts a net.Conn into a Transport, rendering markup through
// pkg/color at a fixed capability Mode chosen at connect time (real
// capability negotiation is, like framing, out of scope here).
type Conn struct {
	raw     net.Conn
	scanner *bufio.Scanner
	mode    color.Mode
}

// NewConn wraps raw for line-based IO, rendering markup at mode.
func NewConn(raw net.Conn, mode color.Mode) *Conn {
	return &Conn{raw: raw, scanner: bufio.NewScanner(raw), mode: mode}
}

// ReadLine blocks for the next newline-terminated input line, trimming any
// trailing carriage return a telnet client's CRLF framing leaves behind.
func (c *Conn) ReadLine() (string, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("session: connection closed")
	}
	return strings.TrimSuffix(c.scanner.Text(), "\r"), nil
}

// Deliver renders every Message through pkg/color and writes a trailing
// Prompt with no newline, so the client's cursor sits right after it.
func (c *Conn) Deliver(outputs []messaging.Output) error {
	var b strings.Builder
	for _, o := range outputs {
		switch v := o.(type) {
		case messaging.TextMessage:
			b.WriteString(color.Render(v.Text, c.mode))
			b.WriteString("\r\n")
		case messaging.PromptOutput:
			b.WriteString(v.Format)
		}
	}
	_, err := c.raw.Write([]byte(b.String()))
	return err
}

func (c *Conn) Close() error { return c.raw.Close() }

// RemoteAddr reports the connection's peer address, for logging.
func (c *Conn) RemoteAddr() string { return c.raw.RemoteAddr().String() }
