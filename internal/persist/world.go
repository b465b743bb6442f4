package persist

import (
	"bytes"
	"os"

	"netcosm/internal/world"
)

// SaveWorld atomically persists the mutable parts of graph (each room's
// object multimap), keyed by room id, to path. Room topology, names, verbs
// and hooks are supplied by the world module at startup and are never
// written here; rooms are created at world-init and never destroyed at
// runtime, so only their object multimaps need to survive a restart.
func SaveWorld(path string, graph *world.Graph, worldName string, roomIDs []world.RoomID) error {
	var buf bytes.Buffer
	if err := writeString(&buf, worldName); err != nil {
		return errf("save world name", err)
	}
	if err := writeUint32(&buf, uint32(len(roomIDs))); err != nil {
		return errf("save room count", err)
	}
	for _, id := range roomIDs {
		room := graph.Get(id)
		if room == nil {
			continue
		}
		if err := writeInt32(&buf, int32(id)); err != nil {
			return errf("save room id", err)
		}
		if err := saveMultimap(&buf, room.Objects); err != nil {
			return errf("save room objects", err)
		}
	}
	return atomicWrite(path, buf.Bytes())
}

// LoadWorld reads path and overlays the saved object multimaps onto graph,
// which must already have been constructed from the world module's static
// room descriptors. Reports the world name recorded at save time.
func LoadWorld(path string, graph *world.Graph, resolver ClassResolver) (worldName string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errf("read world file", err)
	}
	r := bytes.NewReader(data)

	worldName, err = readString(r)
	if err != nil {
		return "", errf("read world name", err)
	}
	n, err := readUint32(r)
	if err != nil {
		return "", errf("read room count", err)
	}
	for i := uint32(0); i < n; i++ {
		id, err := readInt32(r)
		if err != nil {
			return "", errf("read room id", err)
		}
		objs, err := loadMultimap(r, resolver)
		if err != nil {
			return "", errf("read room objects", err)
		}
		if room := graph.Get(world.RoomID(id)); room != nil {
			room.Objects = objs
		}
	}
	return worldName, nil
}

// atomicWrite writes data to a temp file in the same directory as path and
// renames it into place.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errf("write temp file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errf("rename temp file", err)
	}
	return nil
}
