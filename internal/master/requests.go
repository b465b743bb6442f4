package master

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"netcosm/internal/ipc"
	"netcosm/internal/session"
	"netcosm/internal/userdb"
	"netcosm/internal/world"
)

// startRoom is the room every session lands in immediately after
// successful authentication.
const startRoom world.RoomID = 0

// buildRequestTable constructs the static code->entry table once at
// Server.New.
func buildRequestTable() map[byte]requestEntry {
	t := map[byte]requestEntry{
		ipc.CmdNop: {Scope: ScopeNone},

		ipc.CmdBcastMsg: {
			Scope: ScopeAll,
			PerChild: func(s *Server, payload []byte, sender, child *ClientSession) {
				ipc.TrySend(child.Endpoint.ToWorker, ipc.Packet{Cmd: ipc.CmdBcastMsg, Payload: payload})
			},
		},

		ipc.CmdChangeState: {
			Scope: ScopeSender,
			PerChild: func(s *Server, payload []byte, sender, child *ClientSession) {
				if len(payload) < 1 {
					return
				}
				child.State = session.State(payload[0])
			},
		},

		ipc.CmdChangeUser: {
			Scope: ScopeSender,
			PerChild: func(s *Server, payload []byte, sender, child *ClientSession) {
				// The copy is bounded to the payload length by
				// construction; no terminator is trusted.
				child.Username = string(payload)
			},
		},

		ipc.CmdKick: {
			Scope: ScopeAll,
			PerChild: func(s *Server, payload []byte, sender, child *ClientSession) {
				target, msg, ok := decodeKick(payload)
				if !ok || child.ID != target {
					return
				}
				ipc.TrySend(child.Endpoint.ToWorker, ipc.Packet{Cmd: ipc.CmdKick, Payload: []byte(msg)})
			},
			RequireAdmin: true,
			Finalize: func(s *Server, payload []byte, sender *ClientSession) {
				s.sendText(sender, "Success.\n")
			},
		},

		ipc.CmdKickAll: {
			Scope:        ScopeAllButSender,
			RequireAdmin: true,
			PerChild: func(s *Server, payload []byte, sender, child *ClientSession) {
				_, msg, ok := decodeKick(payload)
				if !ok {
					return
				}
				ipc.TrySend(child.Endpoint.ToWorker, ipc.Packet{Cmd: ipc.CmdKick, Payload: []byte(msg)})
			},
		},

		ipc.CmdListClients: {
			Scope: ScopeAll,
			PerChild: func(s *Server, payload []byte, sender, child *ClientSession) {
				s.sendText(sender, formatClientDescriptor(child, sender)+"\n")
			},
			Finalize: func(s *Server, payload []byte, sender *ClientSession) {
				s.sendText(sender, fmt.Sprintf("Total: %d client(s)\n", s.NumClients()))
			},
		},

		ipc.CmdSetRoom: {Scope: ScopeNone, Finalize: handleSetRoom},
		ipc.CmdMove:    {Scope: ScopeNone, Finalize: handleMove},

		ipc.CmdGetUserData:    {Scope: ScopeNone, Finalize: handleGetUserData},
		ipc.CmdAddUserData:    {Scope: ScopeNone, Finalize: handleAddUserData, RequireAdmin: true},
		ipc.CmdDelUserData:    {Scope: ScopeNone, Finalize: handleDelUserData, RequireAdmin: true},

		ipc.CmdLookAt:         {Scope: ScopeNone, Finalize: handleLookAt},
		ipc.CmdTake:           {Scope: ScopeNone, Finalize: handleTake},
		ipc.CmdDrop:           {Scope: ScopeNone, Finalize: handleDrop},
		ipc.CmdExecVerb:       {Scope: ScopeNone, Finalize: handleExecVerb},
		ipc.CmdPrintInventory: {Scope: ScopeNone, Finalize: handlePrintInventory},
		ipc.CmdListUsers:      {Scope: ScopeNone, Finalize: handleListUsers, RequireAdmin: true},
		ipc.CmdGetRoomDesc:    {Scope: ScopeNone, Finalize: handleGetRoomDesc},
		ipc.CmdGetRoomName:    {Scope: ScopeNone, Finalize: handleGetRoomName},
		ipc.CmdWait:           {Scope: ScopeNone, Finalize: handleWait},
	}
	return t
}

func decodeKick(payload []byte) (target ipc.ClientID, msg string, ok bool) {
	if len(payload) < 8 {
		return 0, "", false
	}
	return ipc.ClientID(binary.BigEndian.Uint64(payload[:8])), string(payload[8:]), true
}

// EncodeKick builds a KICK/KICKALL request payload: an 8-byte target
// ClientID (ignored by KICKALL's own handler, present for a uniform
// encoding) followed by the free-text message.
func EncodeKick(target ipc.ClientID, msg string) []byte {
	buf := make([]byte, 8, 8+len(msg))
	binary.BigEndian.PutUint64(buf, uint64(target))
	return append(buf, msg...)
}

func formatClientDescriptor(child, sender *ClientSession) string {
	you := ""
	if child.ID == sender.ID {
		you = " [YOU]"
	}
	user := child.Username
	if user == "" {
		user = "-"
	}
	return fmt.Sprintf("%s id=%d state=%s user=%s%s", child.Addr, child.ID, child.State, user, you)
}

func handleSetRoom(s *Server, payload []byte, sender *ClientSession) {
	roomID := startRoom
	if len(payload) >= 4 {
		roomID = world.RoomID(int32(binary.BigEndian.Uint32(payload)))
	}
	room := s.graph.Get(roomID)
	if room == nil {
		return
	}
	sender.Room = roomID
	room.AddUser(uint64(sender.ID))
}

func handleMove(s *Server, payload []byte, sender *ClientSession) {
	status := uint32(0)
	if len(payload) >= 4 {
		dir := world.Direction(binary.BigEndian.Uint32(payload))
		if newID, ok := s.graph.Move(sender.Room, dir, sender.Username); ok {
			if old := s.graph.Get(sender.Room); old != nil {
				old.RemoveUser(uint64(sender.ID))
			}
			sender.Room = newID
			if room := s.graph.Get(newID); room != nil {
				room.AddUser(uint64(sender.ID))
			}
			status = 1
		}
	}
	if status == 0 {
		s.sendText(sender, "You cannot go that way.\n")
	}
	reply := make([]byte, 4)
	binary.BigEndian.PutUint32(reply, status)
	s.sendReply(sender, ipc.CmdMove, reply)
}

func handleGetUserData(s *Server, payload []byte, sender *ClientSession) {
	username := string(payload)
	u := s.users.Lookup(username)
	if u == nil {
		return // not-found sends no reply packet; the requester sees only ALLDONE
	}
	data := ipc.UserData{
		Username:  u.Username,
		Salt:      u.Salt,
		PassHash:  u.PassHash,
		Priv:      int32(u.Priv),
		LastLogin: u.LastLogin.Unix(),
	}
	s.sendReply(sender, ipc.CmdGetUserData, ipc.EncodeUserData(data))
}

func handleAddUserData(s *Server, payload []byte, sender *ClientSession) {
	username, password, ok := ipc.DecodeCreds(payload)
	if !ok || username == "" {
		s.sendText(sender, "Usage: adduser <name> <password>\n")
		s.sendReply(sender, ipc.CmdAddUserData, []byte{0})
		return
	}
	if _, err := s.users.CreateUser(username, password, userdb.PrivUser); err != nil {
		s.sendText(sender, "Could not create user.\n")
		s.sendReply(sender, ipc.CmdAddUserData, []byte{0})
		return
	}
	s.saver.Mark(true, s.saveState)
	s.sendText(sender, fmt.Sprintf("User %q created.\n", username))
	s.sendReply(sender, ipc.CmdAddUserData, []byte{1})
}

func handleDelUserData(s *Server, payload []byte, sender *ClientSession) {
	username := string(payload)
	ok := s.users.Remove(username)
	status := byte(0)
	if ok {
		status = 1
		s.saver.Mark(true, s.saveState)
		s.sendText(sender, fmt.Sprintf("User %q deleted.\n", username))
	} else {
		s.sendText(sender, fmt.Sprintf("No such user %q.\n", username))
	}
	s.sendReply(sender, ipc.CmdDelUserData, []byte{status})
}

// roomOf returns the room cs is currently in, or nil if it has none; the
// shared first step of LOOKAT/TAKE/DROP/EXECVERB and the room queries.
func (s *Server) roomOf(cs *ClientSession) *world.Room { return s.graph.Get(cs.Room) }

func handleLookAt(s *Server, payload []byte, sender *ClientSession) {
	noun := strings.ToLower(strings.TrimSpace(string(payload)))
	if noun == "" {
		s.sendText(sender, "Look at what?\n")
		return
	}
	var roomObjs, invObjs []*world.Object
	if room := s.roomOf(sender); room != nil {
		roomObjs, _ = room.Objects.Lookup(noun)
	}
	if u := s.users.Lookup(sender.Username); u != nil {
		invObjs, _ = u.Objects.Lookup(noun)
	}
	total := len(roomObjs) + len(invObjs)
	if total == 0 {
		s.sendText(sender, "You don't see that here.\n")
		return
	}
	if total == 1 {
		var o *world.Object
		if len(roomObjs) == 1 {
			o = roomObjs[0]
		} else {
			o = invObjs[0]
		}
		s.sendText(sender, o.Describe(sender.Username)+"\n")
		return
	}
	n := 1
	if len(roomObjs) > 0 {
		s.sendText(sender, "In room:\n")
		for _, o := range roomObjs {
			s.sendText(sender, fmt.Sprintf("%d) %s\n", n, o.Describe(sender.Username)))
			n++
		}
	}
	if len(invObjs) > 0 {
		s.sendText(sender, "In inventory:\n")
		for _, o := range invObjs {
			s.sendText(sender, fmt.Sprintf("%d) %s\n", n, o.Describe(sender.Username)))
			n++
		}
	}
}

func handleTake(s *Server, payload []byte, sender *ClientSession) {
	noun := strings.ToLower(strings.TrimSpace(string(payload)))
	room := s.roomOf(sender)
	if room == nil || noun == "" {
		s.sendText(sender, "You don't see that here.\n")
		return
	}
	list, n := room.Objects.Lookup(noun)
	if n == 0 {
		s.sendText(sender, "You don't see that here.\n")
		return
	}
	matches := append([]*world.Object(nil), list...)
	took := false
	for _, obj := range matches {
		if !obj.Take(sender.Username) {
			s.sendText(sender, "You can't take that.\n")
			continue
		}
		dup := obj.Dup()
		s.users.AddObject(sender.Username, dup)
		room.Objects.DeleteByPointer(noun, obj)
		s.sendText(sender, "Taken.\n")
		took = true
	}
	if took {
		s.saver.Mark(false, s.saveState)
	}
}

func handleDrop(s *Server, payload []byte, sender *ClientSession) {
	noun := strings.ToLower(strings.TrimSpace(string(payload)))
	u := s.users.Lookup(sender.Username)
	room := s.roomOf(sender)
	if u == nil || room == nil || noun == "" {
		s.sendText(sender, "You aren't carrying that.\n")
		return
	}
	list, n := u.Objects.Lookup(noun)
	if n == 0 {
		s.sendText(sender, "You aren't carrying that.\n")
		return
	}
	matches := append([]*world.Object(nil), list...)
	dropped := false
	for _, obj := range matches {
		dup := obj.Dup()
		room.Objects.Insert(noun, dup)
		s.users.RemoveObjectByPtr(sender.Username, obj)
		if !dup.Drop(sender.Username) {
			room.Objects.DeleteByPointer(noun, dup)
			s.users.AddObject(sender.Username, obj)
			s.sendText(sender, "You cannot drop that.\n")
			continue
		}
		s.sendText(sender, "Dropped.\n")
		dropped = true
	}
	if dropped {
		s.saver.Mark(false, s.saveState)
	}
}

func handleExecVerb(s *Server, payload []byte, sender *ClientSession) {
	ctx := verbCtx{s: s, sender: sender}
	if sender.RawMode {
		if s.module != nil {
			s.module.HandleRawInput(sender.Username, payload, ctx)
		}
		return
	}
	line := strings.TrimSpace(string(payload))
	if line == "" {
		return
	}
	word, args, _ := strings.Cut(line, " ")
	word = strings.ToLower(word)
	args = strings.TrimSpace(args)

	if room := s.roomOf(sender); room != nil {
		if v, ok := room.Verbs[word]; ok {
			v.Exec(args, sender.Username, ctx)
			return
		}
	}
	if v, ok := s.verbs[word]; ok {
		v.Exec(args, sender.Username, ctx)
		return
	}
	s.sendText(sender, "I don't know how to do that.\n")
}

func handlePrintInventory(s *Server, payload []byte, sender *ClientSession) {
	u := s.users.Lookup(sender.Username)
	if u == nil || u.Objects.Len() == 0 {
		s.sendText(sender, "Nothing!\n")
		return
	}
	for _, key := range u.Objects.Keys() {
		list, n := u.Objects.Lookup(key)
		if n == 0 {
			continue
		}
		s.sendText(sender, world.FormatNoun(key, n, list[0].DefaultArticle)+"\n")
	}
}

func handleListUsers(s *Server, payload []byte, sender *ClientSession) {
	count := 0
	s.users.Iterate(func(u *userdb.User) bool {
		count++
		last := "never"
		if !u.LastLogin.IsZero() {
			last = u.LastLogin.UTC().Format(time.RFC3339)
		}
		s.sendText(sender, fmt.Sprintf("%s: priv: %d last: %s\n", u.Username, u.Priv, last))
		return true
	})
	if count == 0 {
		s.sendText(sender, "No users.\n")
	}
}

func handleGetRoomDesc(s *Server, payload []byte, sender *ClientSession) {
	room := s.roomOf(sender)
	if room == nil {
		return
	}
	s.sendText(sender, room.Description)
	ipc.TrySend(sender.Endpoint.ToWorker, ipc.Packet{Cmd: ipc.CmdPrintNewline})
	for _, line := range world.DescribeRoomObjects(room.Objects) {
		s.sendText(sender, line+"\n")
	}
}

func handleGetRoomName(s *Server, payload []byte, sender *ClientSession) {
	room := s.roomOf(sender)
	if room == nil {
		return
	}
	s.sendText(sender, room.Name+"\n")
}

func handleWait(s *Server, payload []byte, sender *ClientSession) {
	// Intentional master-stalling debug hook: WAIT blocks the single
	// dispatch goroutine for 10s on purpose.
	time.Sleep(10 * time.Second)
}
