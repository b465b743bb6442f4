package ipc

import "encoding/binary"

// UserData is the wire form of a GETUSERDATA reply payload: everything a
// session worker needs to check a password locally after one round trip to
// the master. ADDUSERDATA requests carry a username/password pair encoded
// by EncodeCreds instead.
type UserData struct {
	Username  string
	Salt      []byte
	PassHash  string
	Priv      int32
	LastLogin int64
}

func putString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

func takeString(data []byte) (string, []byte, bool) {
	if len(data) < 2 {
		return "", nil, false
	}
	n := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < n {
		return "", nil, false
	}
	return string(data[:n]), data[n:], true
}

// EncodeUserData serializes u for transport as a Packet payload.
func EncodeUserData(u UserData) []byte {
	buf := make([]byte, 0, 64+len(u.Username)+len(u.Salt)+len(u.PassHash))
	buf = putString(buf, u.Username)
	buf = putString(buf, string(u.Salt))
	buf = putString(buf, u.PassHash)
	buf = binary.BigEndian.AppendUint32(buf, uint32(u.Priv))
	buf = binary.BigEndian.AppendUint64(buf, uint64(u.LastLogin))
	return buf
}

// EncodeCreds serializes a username/password pair for ADDUSERDATA.
func EncodeCreds(username, password string) []byte {
	buf := putString(nil, username)
	return putString(buf, password)
}

// DecodeCreds parses a payload produced by EncodeCreds.
func DecodeCreds(data []byte) (username, password string, ok bool) {
	username, rest, ok := takeString(data)
	if !ok {
		return "", "", false
	}
	password, _, ok = takeString(rest)
	return username, password, ok
}

// DecodeUserData parses data produced by EncodeUserData. ok is false if
// data is malformed or empty (the not-found case: GETUSERDATA sends no
// reply packet at all when the user does not exist).
func DecodeUserData(data []byte) (UserData, bool) {
	var u UserData
	username, rest, ok := takeString(data)
	if !ok {
		return u, false
	}
	salt, rest, ok := takeString(rest)
	if !ok {
		return u, false
	}
	passHash, rest, ok := takeString(rest)
	if !ok {
		return u, false
	}
	if len(rest) < 12 {
		return u, false
	}
	priv := int32(binary.BigEndian.Uint32(rest[:4]))
	lastLogin := int64(binary.BigEndian.Uint64(rest[4:12]))
	return UserData{
		Username:  username,
		Salt:      []byte(salt),
		PassHash:  passHash,
		Priv:      priv,
		LastLogin: lastLogin,
	}, true
}
