package automation

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
)

// OSCSender sends outputs as single OSC 1.0 messages over UDP.
type OSCSender struct {
	dialer net.Dialer
}

func NewOSCSender() *OSCSender { return &OSCSender{} }

func (s *OSCSender) Send(ctx context.Context, p Payload) error {
	msg, err := EncodeOSC(p.Address, p.Args)
	if err != nil {
		return err
	}
	addr := net.JoinHostPort(p.TargetIP, strconv.Itoa(p.TargetPort))
	conn, err := s.dialer.DialContext(ctx, "udp", addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	if _, err := conn.Write(msg); err != nil {
		return fmt.Errorf("sending osc to %s: %w", addr, err)
	}
	return nil
}

// EncodeOSC builds an OSC message. args is space separated; integers are
// sent as int32, other numbers as float32 and the rest as strings. Double
// quotes group a string containing spaces.
func EncodeOSC(address, args string) ([]byte, error) {
	if !strings.HasPrefix(address, "/") {
		return nil, fmt.Errorf("osc address %q must start with /", address)
	}
	var tags strings.Builder
	var data bytes.Buffer
	tags.WriteByte(',')
	for _, arg := range splitArgs(args) {
		if i, err := strconv.ParseInt(arg, 10, 32); err == nil {
			tags.WriteByte('i')
			_ = binary.Write(&data, binary.BigEndian, int32(i))
			continue
		}
		if f, err := strconv.ParseFloat(arg, 32); err == nil {
			tags.WriteByte('f')
			_ = binary.Write(&data, binary.BigEndian, math.Float32bits(float32(f)))
			continue
		}
		tags.WriteByte('s')
		writeOSCString(&data, arg)
	}

	var msg bytes.Buffer
	writeOSCString(&msg, address)
	writeOSCString(&msg, tags.String())
	msg.Write(data.Bytes())
	return msg.Bytes(), nil
}

// writeOSCString writes s null terminated and padded to four bytes.
func writeOSCString(b *bytes.Buffer, s string) {
	b.WriteString(s)
	pad := 4 - len(s)%4
	b.Write(make([]byte, pad))
}

func splitArgs(s string) []string {
	var (
		out     []string
		cur     strings.Builder
		quoted  bool
		pending bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			pending = true
		case r == ' ' && !quoted:
			if pending {
				out = append(out, cur.String())
				cur.Reset()
				pending = false
			}
		default:
			cur.WriteRune(r)
			pending = true
		}
	}
	if pending {
		out = append(out, cur.String())
	}
	return out
}
