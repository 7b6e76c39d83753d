// Command catalogctl mints write tokens and metrics token hashes for the
// catalog service.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"FileCatalog/internal/auth"
	"FileCatalog/pkg/kit"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "catalogctl:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: catalogctl token|hash [flags]")
	}

	switch args[0] {
	case "token":
		return runToken(args[1:], out)
	case "hash":
		return runHash(args[1:], out)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	secret := fs.String("secret", os.Getenv("JWT_SECRET"), "HS256 signing secret")
	sub := fs.String("sub", "", "token subject")
	role := fs.String("role", auth.RoleAdmin, "token role")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *secret == "" {
		return fmt.Errorf("secret is required")
	}
	if *sub == "" {
		return fmt.Errorf("sub is required")
	}

	tok, err := auth.NewTokenMaker(*secret).New(*sub, *role, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, tok)
	return err
}

func runHash(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	token := fs.String("token", "", "metrics bearer token to hash")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" {
		return fmt.Errorf("token is required")
	}

	h, err := kit.HashToken(*token)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, h)
	return err
}
