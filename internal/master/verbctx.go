package master

import (
	"fmt"

	"netcosm/internal/ipc"
	"netcosm/internal/world"
)

// verbCtx adapts one (Server, ClientSession) pair to world.VerbContext /
// worldmod.Driver, the narrow surfaces room/world-module verb hooks and
// the simulation tick get back instead of a full Server reference,
// keeping "no worker/verb code mutates the world except through this"
// true by construction rather than by convention.
type verbCtx struct {
	s      *Server
	sender *ClientSession
}

func (c verbCtx) Room() world.RoomID { return c.sender.Room }

func (c verbCtx) Reply(format string, args ...any) {
	c.s.sendText(c.sender, fmt.Sprintf(format, args...))
}

func (c verbCtx) SetRawMode(on bool) {
	// The RAWMODE packet always means "flip" on the worker side, so only
	// send one when the master's view actually changes; otherwise the two
	// sides drift out of step.
	if c.sender.RawMode == on {
		return
	}
	c.sender.RawMode = on
	ipc.TrySend(c.sender.Endpoint.ToWorker, ipc.Packet{Cmd: ipc.CmdRawMode})
}

// driver implements worldmod.Driver for the simulation tick: Broadcast
// reaches every connected client, the same path BCASTMSG's PerChild uses.
type driver struct{ s *Server }

func (d driver) Broadcast(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	for _, cs := range d.s.orderedClients() {
		d.s.sendText(cs, text)
	}
}
