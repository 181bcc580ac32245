package wake

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

// Sleeper optionally suspends the Processing Worker after a run, the
// SUPPLEMENTED feature carried over from the original nightly job's
// sleep_pc step. The default is a no-op; operators that want it opt in by
// configuring an SSHSleeper.
type Sleeper interface {
	Sleep() error
}

// NoopSleeper never suspends the worker.
type NoopSleeper struct{}

func (NoopSleeper) Sleep() error { return nil }

// SSHSleeper suspends the worker host by running a configured command over
// SSH (e.g. "systemctl suspend"). It is deliberately narrow: one command,
// one host, key or password auth, a short dial timeout.
type SSHSleeper struct {
	Host       string
	User       string
	AuthMethod ssh.AuthMethod
	Command    string
	Timeout    time.Duration
}

func (s *SSHSleeper) Sleep() error {
	cfg := &ssh.ClientConfig{
		User:            s.User,
		Auth:            []ssh.AuthMethod{s.AuthMethod},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // worker is on a trusted LAN segment
		Timeout:         s.Timeout,
	}

	conn, err := ssh.Dial("tcp", net.JoinHostPort(s.Host, "22"), cfg)
	if err != nil {
		return fmt.Errorf("wake: dial worker over ssh: %w", err)
	}
	defer conn.Close()

	session, err := conn.NewSession()
	if err != nil {
		return fmt.Errorf("wake: open ssh session: %w", err)
	}
	defer session.Close()

	command := s.Command
	if command == "" {
		command = "systemctl suspend"
	}
	if err := session.Run(command); err != nil {
		return fmt.Errorf("wake: run sleep command: %w", err)
	}
	return nil
}
