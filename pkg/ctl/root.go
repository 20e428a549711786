// Package ctl implements cmd/registryctl's subcommands: maintenance
// operations an operator runs directly against the registry's catalog and
// blob store, rather than through the HTTP API. Dispatch is a small
// hand-rolled Command/Subcommands tree over the standard flag package,
// with no third-party CLI framework.
package ctl

import (
	"flag"
	"fmt"
	"os"
)

// Command represents one CLI command or subcommand.
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// NewRootCommand creates the root command, with gc/backup/token wired in.
func NewRootCommand() *Command {
	root := &Command{
		Name:        "registryctl",
		Description: "pkgforge registry operator CLI",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("registryctl", flag.ExitOnError),
	}

	root.Subcommands["gc"] = newGCCommand()
	root.Subcommands["backup"] = newBackupCommand()
	root.Subcommands["token"] = newTokenCommand()

	return root
}

// Execute runs the command selected by os.Args.
func (c *Command) Execute() error {
	args := os.Args[1:]
	if len(args) == 0 {
		return c.usage()
	}

	if args[0] == "-h" || args[0] == "--help" {
		return c.usage()
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

func (c *Command) usage() error {
	fmt.Printf("Usage: %s <command> [args]\n\n", c.Name)
	fmt.Printf("Commands:\n")
	for name, cmd := range c.Subcommands {
		fmt.Printf("  %-10s %s\n", name, cmd.Description)
	}
	return nil
}
