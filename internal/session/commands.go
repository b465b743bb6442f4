package session

import (
	"encoding/binary"
	"strconv"
	"strings"

	"netcosm/internal/ipc"
	"netcosm/internal/world"
)

// handleCommand turns one line of authenticated input into the right
// request(s) against the master. Movement, inventory management and
// look/who/users are recognized directly by the worker; anything else is
// forwarded verbatim as an EXECVERB request for the master's verb maps.
func (m *Machine) handleCommand(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if m.rawMode {
		m.request(ipc.CmdExecVerb, []byte(line))
		return
	}

	verb, args, _ := strings.Cut(line, " ")
	verb = strings.ToLower(verb)
	args = strings.TrimSpace(args)

	switch verb {
	case "look", "l":
		if args == "" {
			m.request(ipc.CmdGetRoomName, nil)
			m.request(ipc.CmdGetRoomDesc, nil)
		} else {
			m.request(ipc.CmdLookAt, []byte(args))
		}
	case "inventory", "i":
		m.request(ipc.CmdPrintInventory, nil)
	case "take", "get":
		m.request(ipc.CmdTake, []byte(args))
	case "drop":
		m.request(ipc.CmdDrop, []byte(args))
	case "who", "listclients":
		m.request(ipc.CmdListClients, nil)
	case "users", "listusers":
		m.request(ipc.CmdListUsers, nil)
	case "wait":
		m.request(ipc.CmdWait, nil)
	case "say":
		m.request(ipc.CmdBcastMsg, []byte(m.username+": "+args+"\n"))
	case "north", "south", "east", "west", "up", "down", "n", "s", "e", "w", "u", "d":
		m.move(verb)
	case "go":
		m.move(args)
	case "kick":
		m.kick(args)
	case "kickall":
		m.request(ipc.CmdKickAll, encodeKick(0, args))
	case "adduser":
		m.addUser(args)
	case "deluser":
		m.request(ipc.CmdDelUserData, []byte(args))
	default:
		m.request(ipc.CmdExecVerb, []byte(line))
	}
}

// kick parses "kick <id> [message]". The master's request table rejects
// admin commands for anyone else regardless of what's typed here.
func (m *Machine) kick(args string) {
	idStr, msg, _ := strings.Cut(args, " ")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		m.writeString("Usage: kick <id> [message]\n")
		return
	}
	m.request(ipc.CmdKick, encodeKick(ipc.ClientID(id), strings.TrimSpace(msg)))
}

func (m *Machine) addUser(args string) {
	username, password, ok := strings.Cut(args, " ")
	if !ok || username == "" || password == "" {
		m.writeString("Usage: adduser <name> <password>\n")
		return
	}
	m.request(ipc.CmdAddUserData, ipc.EncodeCreds(username, strings.TrimSpace(password)))
}

// encodeKick mirrors master.EncodeKick's wire format without importing the
// master package: an 8-byte big-endian ClientID followed by the message.
func encodeKick(target ipc.ClientID, msg string) []byte {
	buf := make([]byte, 8, 8+len(msg))
	binary.BigEndian.PutUint64(buf, uint64(target))
	return append(buf, msg...)
}

func (m *Machine) move(word string) {
	dir, ok := world.ParseDirection(strings.ToLower(word))
	if !ok {
		m.writeString("You cannot go that way.\n")
		return
	}
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(dir))
	reply := m.request(ipc.CmdMove, payload)
	if len(reply) == 4 && binary.BigEndian.Uint32(reply) == 1 {
		m.request(ipc.CmdGetRoomName, nil)
		m.request(ipc.CmdGetRoomDesc, nil)
	}
}
