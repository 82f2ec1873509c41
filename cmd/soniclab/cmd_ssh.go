package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/soniclab-network/soniclab/pkg/util"
)

func newSSHCmd() *cobra.Command {
	var user string
	var password string

	cmd := &cobra.Command{
		Use:   "ssh <node>",
		Short: "Open an SSH session to a node",
		Long: `Open an interactive SSH session to a lab node through its
published SSH port.

  soniclab ssh sonic-1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := loadTopology()
			if err != nil {
				return err
			}

			node, ok := topo.Nodes[args[0]]
			if !ok {
				return fmt.Errorf("node %q not in topology: %w", args[0], util.ErrNotFound)
			}

			config := &ssh.ClientConfig{
				User: user,
				Auth: []ssh.AuthMethod{
					ssh.Password(password),
				},
				HostKeyCallback: ssh.InsecureIgnoreHostKey(),
			}
			client, err := ssh.Dial("tcp", util.JoinHostPort("127.0.0.1", node.Ports.SSH), config)
			if err != nil {
				return fmt.Errorf("connecting to %s: %w", node.ID, err)
			}
			defer client.Close()

			session, err := client.NewSession()
			if err != nil {
				return err
			}
			defer session.Close()

			fd := int(os.Stdin.Fd())
			if term.IsTerminal(fd) {
				state, err := term.MakeRaw(fd)
				if err != nil {
					return err
				}
				defer term.Restore(fd, state)

				w, h, err := term.GetSize(fd)
				if err != nil {
					w, h = 80, 24
				}
				modes := ssh.TerminalModes{
					ssh.ECHO:          1,
					ssh.TTY_OP_ISPEED: 14400,
					ssh.TTY_OP_OSPEED: 14400,
				}
				if err := session.RequestPty("xterm-256color", h, w, modes); err != nil {
					return fmt.Errorf("requesting pty: %w", err)
				}
			}

			session.Stdin = os.Stdin
			session.Stdout = os.Stdout
			session.Stderr = os.Stderr

			if err := session.Shell(); err != nil {
				return err
			}
			return session.Wait()
		},
	}

	cmd.Flags().StringVar(&user, "user", "admin", "SSH user")
	cmd.Flags().StringVar(&password, "password", "YourPaSsWoRd", "SSH password")
	return cmd
}
