package persist

import (
	"io"

	"netcosm/internal/world"
)

// ClassResolver resolves an object class by name at load time. Classes
// are stored by name at rest and resolved back to references on load.
type ClassResolver interface {
	Class(name string) *world.Class
}

func saveObject(w io.Writer, o *world.Object) error {
	if err := writeString(w, o.Name); err != nil {
		return err
	}
	className := ""
	if o.Class != nil {
		className = o.Class.Name
	}
	if err := writeString(w, className); err != nil {
		return err
	}
	if err := writeBool(w, o.DefaultArticle); err != nil {
		return err
	}
	if err := writeBool(w, o.Hidden); err != nil {
		return err
	}
	if err := writeBool(w, o.List); err != nil {
		return err
	}
	var payload []byte
	if o.Class != nil && o.Class.Serialize != nil {
		payload = o.Class.Serialize(o)
	}
	return writeBytes(w, payload)
}

func loadObject(r io.Reader, resolver ClassResolver) (*world.Object, error) {
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	className, err := readString(r)
	if err != nil {
		return nil, err
	}
	defaultArticle, err := readBool(r)
	if err != nil {
		return nil, err
	}
	hidden, err := readBool(r)
	if err != nil {
		return nil, err
	}
	list, err := readBool(r)
	if err != nil {
		return nil, err
	}
	payload, err := readBytes(r)
	if err != nil {
		return nil, err
	}

	o := &world.Object{
		Name:           name,
		DefaultArticle: defaultArticle,
		Hidden:         hidden,
		List:           list,
	}
	if resolver != nil {
		o.Class = resolver.Class(className)
	}
	if o.Class != nil && o.Class.Deserialize != nil {
		o.Class.Deserialize(o, payload)
	}
	return o, nil
}

func saveMultimap(w io.Writer, m *world.Multimap) error {
	var objs []*world.Object
	for _, key := range m.Keys() {
		list, _ := m.Lookup(key)
		objs = append(objs, list...)
	}
	if err := writeUint32(w, uint32(len(objs))); err != nil {
		return err
	}
	for _, o := range objs {
		if err := saveObject(w, o); err != nil {
			return err
		}
	}
	return nil
}

func loadMultimap(r io.Reader, resolver ClassResolver) (*world.Multimap, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	m := world.NewMultimap()
	for i := uint32(0); i < n; i++ {
		o, err := loadObject(r, resolver)
		if err != nil {
			return nil, err
		}
		m.Insert(o.Name, o)
	}
	return m, nil
}
