// Command runepkg installs, removes, and queries Debian-style packages
// against a configured target filesystem root. Grounded on
// datawire-ocibuild's cobra root-command wiring (main.go): a package-level
// *cobra.Command tree with SilenceErrors/SilenceUsage and an explicit
// exit-code mapping in main, rather than cobra's default error printing.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/michkochris/runepkg/internal/config"
	"github.com/michkochris/runepkg/internal/install"
	"github.com/michkochris/runepkg/internal/query"
	"github.com/michkochris/runepkg/internal/remove"
	"github.com/michkochris/runepkg/internal/rpkgerr"
	"github.com/michkochris/runepkg/internal/runepkgctx"
)

var (
	flagForce   bool
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "runepkg",
	Short:         "Install, remove, and query Debian-style packages",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagForce, "force", false, "bypass duplicate and unsatisfied-dependency checks")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "detailed logs and interactive remove confirmation")

	rootCmd.AddCommand(installCmd, removeCmd, listCmd, statusCmd, searchCmd)
}

var installCmd = &cobra.Command{
	Use:   "install <path-or-glob>",
	Short: "Install a .deb file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := newContext()
		if err != nil {
			return err
		}
		return install.New(ctx).Install(args[0])
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <name|name-version>",
	Short: "Remove an installed package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := newContext()
		if err != nil {
			return err
		}
		return remove.New(ctx).Remove(args[0])
	},
}

var listCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List installed packages",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := newContext()
		if err != nil {
			return err
		}
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		entries, err := query.New(ctx).List(prefix)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Println(e)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <name|name-version>",
	Short: "Show the full metadata record for a package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := newContext()
		if err != nil {
			return err
		}
		info, err := query.New(ctx).Status(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Package: %s\nVersion: %s\nArchitecture: %s\n", info.Name, info.Version, info.Architecture)
		if info.Maintainer != "" {
			fmt.Printf("Maintainer: %s\n", info.Maintainer)
		}
		if info.Description != "" {
			fmt.Printf("Description: %s\n", info.Description)
		}
		if info.Depends != "" {
			fmt.Printf("Depends: %s\n", info.Depends)
		}
		fmt.Printf("Files: %d\n", len(info.FileList))
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <substring>",
	Short: "Search installed file paths for a substring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := newContext()
		if err != nil {
			return err
		}
		for _, m := range query.New(ctx).Search(args[0]) {
			fmt.Printf("%s: %s\n", m.Package, m.Path)
		}
		return nil
	},
}

func newContext() (*runepkgctx.Context, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	ctx, err := runepkgctx.New(cfg, flagVerbose)
	if err != nil {
		return nil, err
	}
	if err := ctx.EnsureDirs(); err != nil {
		return nil, err
	}
	ctx.Force = flagForce
	return ctx, nil
}

func main() {
	err := rootCmd.Execute()
	os.Exit(exitCode(err))
}

// exitCode maps the core's error kinds to the process exit codes spec.md
// §6 defines: 0 ok, 2 when suggestions were shown or a confirmation was
// declined, non-zero on any other error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "runepkg: %v\n", err)
	switch {
	case errors.Is(err, rpkgerr.ErrSuggestionsShown), errors.Is(err, rpkgerr.ErrCancelled):
		return 2
	default:
		return 1
	}
}
