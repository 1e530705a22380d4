//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package server

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// socket はバインド済みでまだlistenしていないソケット
type socket struct {
	fd      int
	address string
}

// bind は SO_REUSEADDR と SO_REUSEPORT を設定したソケットをバインドする
// 複数のリスナーが同じアドレスを共有できる
func bind(address string) (*socket, error) {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("アドレス %s の解決に失敗: %w", address, err)
	}

	family, sa := sockaddr(addr)
	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	unix.CloseOnExec(fd)

	for _, opt := range []int{unix.SO_REUSEADDR, unix.SO_REUSEPORT} {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, opt, 1); err != nil {
			unix.Close(fd)
			return nil, os.NewSyscallError("setsockopt", err)
		}
	}

	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("bind", err)
	}

	return &socket{fd: fd, address: address}, nil
}

// listen は指定したバックログでlistenし、net.Listenerに変換する
func (s *socket) listen(backlog int) (net.Listener, error) {
	if err := unix.Listen(s.fd, backlog); err != nil {
		s.close()
		return nil, os.NewSyscallError("listen", err)
	}

	// FileListenerはfdを複製するので元のファイルは閉じてよい
	f := os.NewFile(uintptr(s.fd), "tcp:"+s.address)
	defer f.Close()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("リスナーの作成に失敗: %w", err)
	}
	return ln, nil
}

func (s *socket) close() error {
	return unix.Close(s.fd)
}

func sockaddr(addr *net.TCPAddr) (int, unix.Sockaddr) {
	if addr.IP == nil || addr.IP.To4() != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		if ip4 := addr.IP.To4(); ip4 != nil {
			copy(sa.Addr[:], ip4)
		}
		return unix.AF_INET, sa
	}

	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	if addr.Zone != "" {
		if ifi, err := net.InterfaceByName(addr.Zone); err == nil {
			sa.ZoneId = uint32(ifi.Index)
		}
	}
	return unix.AF_INET6, sa
}
