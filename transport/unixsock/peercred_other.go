//go:build !linux && !darwin

package unixsock

import "net"

// peerPid is informational only; platforms without peer credentials report 0.
func peerPid(conn *net.UnixConn) int { return 0 }

func setLinger(conn *net.UnixConn) {}
