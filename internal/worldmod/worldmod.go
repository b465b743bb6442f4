// Package worldmod is the world-module contract: the set of static room
// descriptors, object classes, global verbs and optional simulation tick a
// world supplies. A compile-time registry stands in for a dynamically
// loaded library: world packages (see worlds/dunnet) register themselves
// by name from init(), and the master resolves them by name at startup.
package worldmod

import (
	"time"

	"netcosm/internal/persist"
	"netcosm/internal/userdb"
	"netcosm/internal/world"
)

// RoomDescriptor is the static shape of one room as a world module
// describes it; internal/master turns a slice of these into a runtime
// world.Graph at startup.
type RoomDescriptor struct {
	ID          world.RoomID
	Name        string
	Description string
	Adjacent    [world.DirCount]world.RoomID
	Verbs       map[string]*world.Verb
	OnEnter     func(room world.RoomID, userKey string) bool
	OnLeave     func(room world.RoomID, userKey string) bool
}

// Driver is the narrow surface a module's simulation tick gets back,
// enough to announce things to every connected player without importing
// internal/master (which would cycle back to worldmod).
type Driver interface {
	Broadcast(format string, args ...any)
}

// Module is the symbol contract a world module exposes.
type Module interface {
	Name() string
	Classes() []*world.Class
	Verbs() []*world.Verb
	Rooms() []RoomDescriptor

	// Simulation returns a periodic tick function and its period; ok is
	// false if this module defines no simulation.
	Simulation() (tick func(Driver), period time.Duration, ok bool)

	// HandleRawInput receives raw bytes for a session a verb previously
	// put into raw mode via VerbContext.SetRawMode(true).
	HandleRawInput(userKey string, data []byte, ctx world.VerbContext)

	// UserDataHooks returns the module's per-user (de)serialize functions
	// for userdb.User.WorldData; ok is false if the module defines none,
	// mirroring Simulation's optional-capability shape.
	UserDataHooks() (serialize func(u *userdb.User) []byte, deserialize func(u *userdb.User, data []byte), ok bool)
}

var registry = make(map[string]Module)

// Register adds m under name. Intended to be called once from a world
// package's init(); panics on a duplicate name, a build-time
// configuration mistake rather than a runtime condition.
func Register(name string, m Module) {
	if _, exists := registry[name]; exists {
		panic("worldmod: duplicate registration for " + name)
	}
	registry[name] = m
}

// Lookup resolves a module by name.
func Lookup(name string) (Module, bool) {
	m, ok := registry[name]
	return m, ok
}

// BuildGraph constructs a world.Graph from m's static room descriptors.
func BuildGraph(m Module) *world.Graph {
	rooms := make([]*world.Room, 0, len(m.Rooms()))
	for _, rd := range m.Rooms() {
		r := world.NewRoom(rd.ID, rd.Name, rd.Description)
		r.Adjacent = rd.Adjacent
		if rd.Verbs != nil {
			r.Verbs = rd.Verbs
		}
		r.OnEnter = rd.OnEnter
		r.OnLeave = rd.OnLeave
		rooms = append(rooms, r)
	}
	return world.NewGraph(rooms)
}

type classIndex struct{ m Module }

func (c classIndex) Class(name string) *world.Class {
	for _, cl := range c.m.Classes() {
		if cl.Name == name {
			return cl
		}
	}
	return nil
}

// ClassResolver adapts m to persist.ClassResolver, so saved object/user
// payloads can re-resolve their class by name on load.
func ClassResolver(m Module) persist.ClassResolver { return classIndex{m} }

type userDataHooks struct {
	serialize   func(u *userdb.User) []byte
	deserialize func(u *userdb.User, data []byte)
}

func (h userDataHooks) SerializeUserData(u *userdb.User) []byte {
	if h.serialize == nil {
		return u.WorldData
	}
	return h.serialize(u)
}

func (h userDataHooks) DeserializeUserData(u *userdb.User, data []byte) {
	if h.deserialize != nil {
		h.deserialize(u, data)
	}
}

// UserDataHooksFor adapts m's optional per-user (de)serialize functions to
// persist.UserDataHooks; returns nil if m defines neither, so persist
// falls back to its own verbatim WorldData round-trip.
func UserDataHooksFor(m Module) persist.UserDataHooks {
	serialize, deserialize, ok := m.UserDataHooks()
	if !ok {
		return nil
	}
	return userDataHooks{serialize: serialize, deserialize: deserialize}
}
