// Package util provides shared utility functions.
package util

import (
	"hash/fnv"
	"net"
)

// ConnID computes a 4-byte identifier for a connection from its local
// address and role. It only tags log lines and does not need to be
// reversible.
func ConnID(local net.Addr, role string) uint32 {
	h := fnv.New32a()
	if local != nil {
		h.Write([]byte(local.Network()))
		h.Write([]byte(local.String()))
	}
	h.Write([]byte(role))
	return h.Sum32()
}
