package main

import (
	"flag"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

// runAdmin dispatches admin subcommands.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "hash-token":
		return runAdminHashToken(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: guildkit admin <command> [options]

Commands:
  hash-token   Hash an operator API token for admin.token_hash
  help         Show this help message

Examples:
  guildkit admin hash-token
  guildkit admin hash-token --token s3cret
`)
}

// runAdminHashToken prints a bcrypt hash suitable for the admin.token_hash
// config key or the GUILDKIT_ADMIN_TOKEN_HASH env var.
func runAdminHashToken(args []string) error {
	fs := flag.NewFlagSet("hash-token", flag.ContinueOnError)
	token := fs.String("token", "", "token value (prompted if not provided)") //nolint:gosec // CLI flag
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tok := *token
	if tok == "" {
		var err error
		tok, err = promptSecret("Token: ")
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		confirm, err := promptSecret("Confirm token: ")
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		if tok != confirm {
			return fmt.Errorf("tokens do not match")
		}
	}
	if tok == "" {
		return fmt.Errorf("token must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(tok), *cost)
	if err != nil {
		return fmt.Errorf("hash token: %w", err)
	}

	fmt.Println(string(hash))
	return nil
}

// promptSecret reads a value from the terminal without echoing.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
