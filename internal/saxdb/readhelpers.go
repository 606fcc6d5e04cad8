package saxdb

import (
	"strconv"
	"time"

	"ircservd/internal/recorddb"
)

// ReadInt reads a decimal integer leaf, defaulting to def if absent or
// unparsable — readers never fail the whole load over one bad field (§7).
func ReadInt(obj *recorddb.Object, name string, def int) int {
	s := obj.GetString(name, "")
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// ReadUint64 reads an unsigned decimal integer leaf.
func ReadUint64(obj *recorddb.Object, name string, def uint64) uint64 {
	s := obj.GetString(name, "")
	if s == "" {
		return def
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// ReadTime reads a unix-seconds timestamp leaf.
func ReadTime(obj *recorddb.Object, name string) time.Time {
	secs := ReadInt(obj, name, 0)
	if secs == 0 {
		return time.Time{}
	}
	return time.Unix(int64(secs), 0).UTC()
}

// WriteTime writes a unix-seconds timestamp leaf, omitting it entirely when
// zero (matching srvx, which never emits a zero expiry/revoked field).
func WriteTime(ctx *WriteContext, name string, t time.Time) {
	if t.IsZero() {
		return
	}
	ctx.WriteInt(name, uint64(t.Unix()))
}
