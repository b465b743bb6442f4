// Package dunnet is the one world module bundled with this server: three
// rooms, a vetoing locked box, a plain lamp, and a single global verb.
package dunnet

import (
	"time"

	"netcosm/internal/userdb"
	"netcosm/internal/world"
	"netcosm/internal/worldmod"
)

// Name is the module's registration key, passed to worldmod.Lookup by
// cmd/netcosmd's -w flag.
const Name = "dunnet"

var lockedBoxClass = &world.Class{
	Name: "box",
	Take: func(o *world.Object, userKey string) bool { return false },
	Describe: func(o *world.Object, userKey string) string {
		return "a small locked box, firmly shut"
	},
}

var lampClass = &world.Class{
	Name: "lamp",
	Describe: func(o *world.Object, userKey string) string {
		return "a shiny brass lamp"
	},
}

var xyzzyVerb = &world.Verb{
	Name: "xyzzy",
	Exec: func(args, userKey string, ctx world.VerbContext) {
		ctx.Reply("A hollow voice says \"Fool.\"\n")
	},
}

const (
	roomFront world.RoomID = iota
	roomHallway
	roomStoreroom
)

type module struct{}

func (module) Name() string { return Name }

func (module) Classes() []*world.Class { return []*world.Class{lockedBoxClass, lampClass} }

func (module) Verbs() []*world.Verb { return []*world.Verb{xyzzyVerb} }

func noneAdjacency() [world.DirCount]world.RoomID {
	var adj [world.DirCount]world.RoomID
	for i := range adj {
		adj[i] = world.RoomNone
	}
	return adj
}

func (module) Rooms() []worldmod.RoomDescriptor {
	front := noneAdjacency()
	front[world.DirNorth] = roomHallway

	hallway := noneAdjacency()
	hallway[world.DirSouth] = roomFront
	hallway[world.DirEast] = roomStoreroom

	storeroom := noneAdjacency()
	storeroom[world.DirWest] = roomHallway

	return []worldmod.RoomDescriptor{
		{
			ID:          roomFront,
			Name:        "Building Front",
			Description: "You are standing at the end of a road before a small brick building.",
			Adjacent:    front,
		},
		{
			ID:          roomHallway,
			Name:        "Hallway",
			Description: "You are in a narrow hallway. A door leads south, another east.",
			Adjacent:    hallway,
		},
		{
			ID:          roomStoreroom,
			Name:        "Storeroom",
			Description: "A cramped storeroom lined with dusty shelves.",
			Adjacent:    storeroom,
		},
	}
}

func (module) Simulation() (func(worldmod.Driver), time.Duration, bool) {
	return nil, 0, false
}

func (module) HandleRawInput(userKey string, data []byte, ctx world.VerbContext) {}

func (module) UserDataHooks() (func(*userdb.User) []byte, func(*userdb.User, []byte), bool) {
	return nil, nil, false
}

func init() {
	worldmod.Register(Name, module{})
}

// SeedObjects populates the starting rooms with their objects. Called
// once by cmd/netcosmd when no world save file exists yet.
func SeedObjects(graph *world.Graph) {
	if room := graph.Get(roomHallway); room != nil {
		lamp := world.New("lamp", lampClass)
		lamp.DefaultArticle = true
		room.Objects.Insert("lamp", lamp)
	}
	if room := graph.Get(roomStoreroom); room != nil {
		box := world.New("box", lockedBoxClass)
		box.DefaultArticle = true
		room.Objects.Insert("box", box)
	}
}

// StartRoom is the room a freshly connected session begins in.
const StartRoom = roomFront
