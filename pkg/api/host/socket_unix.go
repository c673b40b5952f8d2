//go:build !windows

package host

import (
	"fmt"
	"os"
	"syscall"
)

func socketInfo(path string) SocketInfo {
	info, err := os.Stat(path)
	if err != nil {
		return SocketInfo{Exists: false}
	}

	uid, gid := os.Getuid(), os.Getgid()
	facts := SocketInfo{
		Exists:  true,
		Mode:    fmt.Sprintf("0o%o", info.Mode().Perm()),
		ProcUID: &uid,
		ProcGID: &gid,
	}

	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		facts.UID = &stat.Uid
		facts.GID = &stat.Gid
	}

	return facts
}
