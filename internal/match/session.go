package match

import (
	"net"

	"github.com/sebastiandperez/hascill-crypto-race/internal/wire"
)

// inboundFrame is a superset of every client->server message shape, so
// one read off the wire is enough to both sniff the type and decode the
// payload — framed JSON can only be consumed once.
type inboundFrame struct {
	Type   string  `json:"type"`
	Team   int     `json:"team"`
	Phase  string  `json:"phase"`
	Block  int     `json:"block"`
	Vector []int64 `json:"vector"`
	Ts     float64 `json:"ts"`
}

// RunSession drives one accepted connection through the protocol
// described in spec §4.8: hello, join, then a dispatch loop over
// ready/step_answer/pong until the connection fails or is closed. It
// blocks until the connection ends, so callers run it on its own
// goroutine per accepted socket.
func RunSession(m *Controller, conn net.Conn) {
	if err := wire.WriteFrame(conn, wire.HelloMsg{Type: "hello", Proto: wire.ProtoVersion, Msg: "welcome to HASCILL crypto race"}); err != nil {
		_ = conn.Close()
		return
	}

	var join inboundFrame
	if err := wire.ReadFrame(conn, &join); err != nil || join.Type != "join" {
		_ = wire.WriteFrame(conn, wire.ErrorMsg{Type: "error", Msg: "expected join message"})
		_ = conn.Close()
		return
	}

	cc, err := m.Join(join.Team, conn)
	if err != nil {
		_ = wire.WriteFrame(conn, wire.ErrorMsg{Type: "error", Msg: err.Error()})
		_ = conn.Close()
		return
	}

	for {
		var in inboundFrame
		if err := cc.Recv(&in); err != nil {
			m.Disconnect(cc)
			return
		}
		switch in.Type {
		case "ready":
			m.SetReady(cc)
		case "step_answer":
			m.StepAnswer(cc, wire.StepAnswerMsg{Type: in.Type, Phase: in.Phase, Block: in.Block, Vector: in.Vector})
		case "pong":
			m.Pong(cc, wire.PongMsg{Type: in.Type, Ts: in.Ts})
		default:
			_ = cc.Send(wire.HintMsg{Type: "hint", Msg: "unrecognized message type " + in.Type})
		}
	}
}
