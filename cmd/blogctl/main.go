// Command blogctl is the operator's tool for the blog database.
//
// Roles are never changed through the HTTP API; promote and demote here
// are the only way to grant or revoke admin.
//
//	blogctl [-config path] promote <email>
//	blogctl [-config path] demote <email>
//	blogctl [-config path] users
//	blogctl [-config path] migrate
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/config"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/repository"
	"github.com/sakif/blog-platform/internal/server"
)

const usage = `usage: blogctl [-config path] <command> [args]

commands:
  promote <email>   grant the admin role
  demote <email>    revoke the admin role
  users             list users (id, email, role)
  migrate           create the schema and exit
`

// errUsage makes run print the usage text and exit 2.
var errUsage = errors.New("invalid usage")

// opener opens the store; tests swap in an in-memory one.
type opener func(ctx context.Context) (repository.Store, error)

func main() {
	fs := flag.NewFlagSet("blogctl", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	configPath := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	open := func(ctx context.Context) (repository.Store, error) {
		dbCfg, err := config.LoadDatabase(*configPath)
		if err != nil {
			return nil, err
		}
		return server.OpenStore(ctx, dbCfg, logger)
	}

	err := run(context.Background(), fs.Args(), os.Stdout, open)
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	case err != nil:
		fmt.Fprintln(os.Stderr, "blogctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, open opener) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "promote", "demote":
		if len(rest) != 1 {
			return errUsage
		}
	case "users", "migrate":
		if len(rest) != 0 {
			return errUsage
		}
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	store, err := open(ctx)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	switch cmd {
	case "promote":
		return setRole(ctx, store, out, rest[0], model.RoleAdmin)
	case "demote":
		return setRole(ctx, store, out, rest[0], model.RoleUser)
	case "users":
		return listUsers(ctx, store, out)
	default:
		// Opening the store already applied the schema.
		fmt.Fprintln(out, "schema is up to date")
		return nil
	}
}

func setRole(ctx context.Context, users repository.UserRepository, out io.Writer, email string, role model.Role) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := users.UpdateUserRole(ctx, email, role); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return fmt.Errorf("no user with email %q", email)
		}
		return err
	}
	fmt.Fprintf(out, "%s is now %s\n", email, role)
	return nil
}

func listUsers(ctx context.Context, users repository.UserRepository, out io.Writer) error {
	list, err := users.ListUsers(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tROLE\tNAME")
	for _, u := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Email, u.Role, u.Name)
	}
	return tw.Flush()
}
