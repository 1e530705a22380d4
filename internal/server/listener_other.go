//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package server

import (
	"context"
	"net"
)

// socket はソケットオプションを直接扱えない環境向けの実装
// SO_REUSEPORT とバックログの指定は行わない
type socket struct {
	address string
}

func bind(address string) (*socket, error) {
	return &socket{address: address}, nil
}

func (s *socket) listen(backlog int) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(context.Background(), "tcp", s.address)
}

func (s *socket) close() error {
	return nil
}
