package types

import "time"

// 100ns intervals between 1601-01-01 and 1970-01-01.
const filetimeUnixDiff = 116444736000000000

// TimeToFiletime converts t to a Windows FILETIME. The zero time maps to 0,
// which SMB2 uses for "not specified".
func TimeToFiletime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano()/100) + filetimeUnixDiff
}

// FiletimeToTime is the inverse of TimeToFiletime. Values before the Unix
// epoch, and the SET_INFO sentinels 0 and 0xFFFFFFFFFFFFFFFF, give the zero time.
func FiletimeToTime(ft uint64) time.Time {
	if ft < filetimeUnixDiff || ft == ^uint64(0) {
		return time.Time{}
	}
	return time.Unix(0, int64(ft-filetimeUnixDiff)*100).UTC()
}

func NowFiletime() uint64 {
	return TimeToFiletime(time.Now())
}
