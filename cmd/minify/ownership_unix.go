//go:build unix

package main

import (
	"os"
	"syscall"
)

const supportsGetOwnership = true

// getOwnership returns the owning user and group of a file.
func getOwnership(info os.FileInfo) (uid, gid int, ok bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, false
	}
	return int(st.Uid), int(st.Gid), true
}
