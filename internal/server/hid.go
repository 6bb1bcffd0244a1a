package server

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"sync/atomic"
	"time"
)

// hidCounter seeds from a random value at startup so restarts do not
// reissue the same sequence.
var hidCounter = func() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint32(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint32(b[:])
}()

// historyID returns a 24 character hex id for a merge journal entry.
// The leading four bytes hold the unix time so ids sort roughly by
// age, four random bytes and a counter keep them unique.
func historyID() string {
	var b [12]byte
	binary.BigEndian.PutUint32(b[:4], uint32(time.Now().Unix()))
	rand.Read(b[4:8])
	binary.BigEndian.PutUint32(b[8:], atomic.AddUint32(&hidCounter, 1))
	return hex.EncodeToString(b[:])
}
