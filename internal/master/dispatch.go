package master

import (
	"netcosm/internal/ipc"
	"netcosm/internal/session"
)

// Scope selects which sessions a request's PerChild handler runs
// against.
type Scope int

const (
	ScopeNone Scope = iota
	ScopeSender
	ScopeAllButSender
	ScopeAll
)

// PerChildFunc is invoked once per (sender, child) pair selected by a
// request's Scope. For ScopeSender it runs exactly once with
// child == sender; for ScopeAll/ScopeAllButSender it runs once for every
// live session the scope selects.
type PerChildFunc func(s *Server, payload []byte, sender, child *ClientSession)

// FinalizeFunc runs exactly once per request, after fan-out, for the
// sender only. Every ScopeNone request does its entire job here.
type FinalizeFunc func(s *Server, payload []byte, sender *ClientSession)

type requestEntry struct {
	Scope        Scope
	RequireAdmin bool
	PerChild     PerChildFunc
	Finalize     FinalizeFunc
}

// dispatch routes one worker packet: locate the sender, look up the table
// entry by command code, fan out per the entry's Scope, run its Finalize,
// and send exactly one ALLDONE. If the sender is unknown, nothing is
// sent at all.
func (s *Server) dispatch(pkt ipc.Packet) {
	sender, ok := s.clients[pkt.SenderID]
	if !ok {
		s.log.Warn("dispatch: unknown sender, dropping", "sender", pkt.SenderID, "cmd", pkt.Cmd)
		return
	}

	entry, ok := s.table[pkt.Cmd]
	if !ok {
		s.log.Warn("dispatch: unknown request code", "cmd", pkt.Cmd, "sender", sender.ID)
		s.sendAllDone(sender)
		return
	}

	if entry.RequireAdmin && sender.State != session.StateLoggedInAdmin {
		s.sendText(sender, "Permission denied.\n")
		s.sendAllDone(sender)
		return
	}

	if entry.Scope == ScopeSender || entry.Scope == ScopeAll {
		if entry.PerChild != nil {
			entry.PerChild(s, pkt.Payload, sender, sender)
		}
	}
	if entry.Scope == ScopeAll || entry.Scope == ScopeAllButSender {
		if entry.PerChild != nil {
			for _, child := range s.orderedClients() {
				if child.ID == sender.ID {
					continue
				}
				entry.PerChild(s, pkt.Payload, sender, child)
			}
		}
	}

	if entry.Finalize != nil {
		entry.Finalize(s, pkt.Payload, sender)
	}
	s.sendAllDone(sender)
}

func (s *Server) sendAllDone(sender *ClientSession) {
	ipc.Send(sender.Endpoint.ToWorker, ipc.Packet{Cmd: ipc.CmdAllDone})
}

// sendText writes text directly to one client's socket via a BCASTMSG
// packet, splitting as needed; this is how GETROOMDESC, LOOKAT, TAKE/DROP
// refusals and every other "print this to the requester" reply is sent.
// These are rendered immediately by the worker's writePump, not captured
// as a structured RPC return value.
func (s *Server) sendText(cs *ClientSession, text string) {
	ipc.SendBroadcast(func(p ipc.Packet) bool {
		return ipc.TrySend(cs.Endpoint.ToWorker, p)
	}, 0, []byte(text))
}

// sendReply sends a structured, non-printed reply payload under cmd; the
// worker's writePump default case captures it for the blocked requester
// (e.g. MOVE's status byte, GETUSERDATA's encoded record).
func (s *Server) sendReply(cs *ClientSession, cmd byte, payload []byte) {
	ipc.TrySend(cs.Endpoint.ToWorker, ipc.Packet{Cmd: cmd, Payload: payload})
}
