package pipeline

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPConnector dials one SFTP endpoint; credentials vary per client
// because each client lands in its own chrooted account.
type SFTPConnector struct {
	host string
	port int
}

func NewSFTPConnector(host string, port int) (*SFTPConnector, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, ErrInvalidInput
	}
	if port <= 0 {
		port = 22
	}
	return &SFTPConnector{host: host, port: port}, nil
}

func (c *SFTPConnector) Connect(ctx context.Context, creds Credentials) (SourceSession, error) {
	if c == nil {
		return nil, ErrInvalidInput
	}
	if strings.TrimSpace(creds.User) == "" {
		return nil, fmt.Errorf("%w: missing user", ErrAuth)
	}
	config := &ssh.ClientConfig{
		User:            creds.User,
		Auth:            []ssh.AuthMethod{ssh.Password(creds.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
	addr := net.JoinHostPort(c.host, fmt.Sprintf("%d", c.port))
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrNetwork, addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		if strings.Contains(err.Error(), "unable to authenticate") {
			return nil, fmt.Errorf("%w: %s@%s: %v", ErrAuth, creds.User, addr, err)
		}
		return nil, fmt.Errorf("%w: handshake %s: %v", ErrNetwork, addr, err)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)
	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, fmt.Errorf("%w: sftp subsystem: %v", ErrNetwork, err)
	}
	return &sftpSession{ssh: sshClient, sftp: sftpClient}, nil
}

type sftpSession struct {
	ssh  *ssh.Client
	sftp *sftp.Client
}

func (s *sftpSession) List(dir string) ([]string, error) {
	if s == nil || s.sftp == nil {
		return nil, ErrInvalidInput
	}
	entries, err := s.sftp.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrNetwork, dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func (s *sftpSession) Fetch(remote string) (io.ReadCloser, error) {
	if s == nil || s.sftp == nil {
		return nil, ErrInvalidInput
	}
	file, err := s.sftp.Open(remote)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrNetwork, remote, err)
	}
	return file, nil
}

func (s *sftpSession) Close() error {
	if s == nil {
		return nil
	}
	var firstErr error
	if s.sftp != nil {
		firstErr = s.sftp.Close()
	}
	if s.ssh != nil {
		if err := s.ssh.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
