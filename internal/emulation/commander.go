package emulation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"time"

	"golang.org/x/crypto/ssh"
)

// Commander runs a shell command on the emulation host and returns its
// combined output.
type Commander interface {
	Run(ctx context.Context, cmd string) (string, error)
}

// LocalCommander runs commands through the local shell.
type LocalCommander struct {
	Shell string // defaults to /bin/sh
}

// Run executes cmd with "<shell> -c".
func (l LocalCommander) Run(ctx context.Context, cmd string) (string, error) {
	shell := l.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	out, err := exec.CommandContext(ctx, shell, "-c", cmd).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s: %w", cmd, err)
	}
	return string(out), nil
}

// SSHConfig describes how to reach a remote emulation host.
type SSHConfig struct {
	Address    string // host:port
	User       string
	Password   string
	PrivateKey []byte
	Passphrase string
	Timeout    time.Duration
}

// SSHCommander runs commands on a remote emulation host, one SSH session per
// command.
type SSHCommander struct {
	cfg SSHConfig
}

// NewSSHCommander validates cfg and returns a commander for it.
func NewSSHCommander(cfg SSHConfig) (*SSHCommander, error) {
	if cfg.Address == "" {
		return nil, errors.New("ssh address is required")
	}
	if cfg.User == "" {
		return nil, errors.New("ssh user is required")
	}
	if cfg.Password == "" && len(cfg.PrivateKey) == 0 {
		return nil, errors.New("ssh password or private key is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SSHCommander{cfg: cfg}, nil
}

// Run dials the remote host and executes cmd. A non-zero exit status is
// returned as an error together with the output.
func (s *SSHCommander) Run(ctx context.Context, cmd string) (string, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.CombinedOutput(cmd)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return string(r.out), fmt.Errorf("%s: %w", cmd, r.err)
		}
		return string(r.out), nil
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return "", ctx.Err()
	}
}

func (s *SSHCommander) connect(ctx context.Context) (*ssh.Client, error) {
	config, err := s.clientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build SSH config: %w", err)
	}

	dialer := &net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", s.cfg.Address, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, s.cfg.Address, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to establish SSH connection: %w", err)
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

func (s *SSHCommander) clientConfig() (*ssh.ClientConfig, error) {
	var auth ssh.AuthMethod
	if len(s.cfg.PrivateKey) > 0 {
		var (
			signer ssh.Signer
			err    error
		)
		if s.cfg.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(s.cfg.PrivateKey, []byte(s.cfg.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(s.cfg.PrivateKey)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		auth = ssh.PublicKeys(signer)
	} else {
		auth = ssh.Password(s.cfg.Password)
	}

	return &ssh.ClientConfig{
		User:            s.cfg.User,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         s.cfg.Timeout,
	}, nil
}
