// Package ipc implements the framed, length-delimited packet transport
// between a session worker and the master. Each worker owns an Endpoint,
// a pair of buffered Go channels standing in for the packet-mode pipe /
// SEQPACKET / DGRAM preference chain a process-per-connection design would
// need: a channel send is one atomic value, so message boundaries are never
// in question here.
package ipc

import "fmt"

// ClientID identifies a worker the way a PID would in a process-per-client
// design. Zero is never assigned to a live client.
type ClientID uint64

// MsgMax bounds a single packet: one command byte plus payload.
const MsgMax = 4096

// Request/reply command codes. Worker→master codes and master→worker codes
// share one namespace.
const (
	CmdNop byte = iota
	CmdBcastMsg
	CmdChangeState
	CmdChangeUser
	CmdKick
	CmdKickAll
	CmdListClients
	CmdSetRoom
	CmdMove
	CmdGetUserData
	CmdAddUserData
	CmdDelUserData
	CmdLookAt
	CmdTake
	CmdDrop
	CmdExecVerb
	CmdPrintInventory
	CmdListUsers
	CmdGetRoomDesc
	CmdGetRoomName
	CmdWait
	CmdPrintNewline
	CmdRawMode
	CmdAllDone
)

// Packet is the unit exchanged over an Endpoint. SenderID is populated on
// worker→master packets and ignored (zero) on master→worker packets, the Go
// analogue of "sender_id ‖ cmd ‖ payload" vs. "cmd ‖ payload".
type Packet struct {
	SenderID ClientID
	Cmd      byte
	Payload  []byte
}

// Endpoint is one worker's private channel pair to the master.
type Endpoint struct {
	ToMaster chan Packet // worker -> master
	ToWorker chan Packet // master -> worker
}

// NewEndpointPair creates the channel pair for one newly accepted
// connection. bufSize sets each channel's buffer, the per-client outbound
// queue depth.
func NewEndpointPair(bufSize int) Endpoint {
	return Endpoint{
		ToMaster: make(chan Packet, bufSize),
		ToWorker: make(chan Packet, bufSize),
	}
}

// Send enqueues pkt. A full channel here is the Go equivalent of a would-
// block write: the caller either retries (worker side, since the master
// must keep draining) or, on the master's fan-out path, is treated as a
// slow/stuck client and dropped by the master's fan-out path.
func Send(ch chan<- Packet, pkt Packet) error {
	if len(pkt.Payload)+1 > MsgMax && pkt.Cmd != CmdBcastMsg {
		panic(fmt.Sprintf("ipc: packet cmd=%d payload=%d exceeds MsgMax without BCASTMSG", pkt.Cmd, len(pkt.Payload)))
	}
	select {
	case ch <- pkt:
		return nil
	default:
	}
	// Slow consumer: block until the consumer makes room rather than spin,
	// matching the "retry on transient would-block" contract without
	// busy-waiting.
	ch <- pkt
	return nil
}

// TrySend enqueues pkt without blocking, reporting false if the channel's
// buffer is full. The master's fan-out path uses this to detect and drop
// slow/stuck workers rather than stalling the whole dispatch loop.
func TrySend(ch chan<- Packet, pkt Packet) bool {
	select {
	case ch <- pkt:
		return true
	default:
		return false
	}
}

// SendBroadcast splits data into MsgMax-1-sized CmdBcastMsg packets when it
// doesn't fit in one. send delivers one packet and reports whether it was
// accepted; callers pass TrySend-backed closures to drop slow recipients,
// or a blocking closure when the sender must not lose its own echo.
func SendBroadcast(send func(Packet) bool, sender ClientID, data []byte) bool {
	const chunk = MsgMax - 1
	if len(data) == 0 {
		return send(Packet{SenderID: sender, Cmd: CmdBcastMsg})
	}
	ok := true
	for off := 0; off < len(data); off += chunk {
		end := off + chunk
		if end > len(data) {
			end = len(data)
		}
		if !send(Packet{SenderID: sender, Cmd: CmdBcastMsg, Payload: data[off:end]}) {
			ok = false
		}
	}
	return ok
}
