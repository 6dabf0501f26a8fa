package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"antns/internal/vault"
)

func (a *app) keysBackup(ctx context.Context, out io.Writer, args []string) error {
	if _, err := parseFlags(flag.NewFlagSet("keys backup", flag.ContinueOnError), args, 0); err != nil {
		return err
	}
	v, err := a.openVault()
	if err != nil {
		return err
	}
	domains, err := v.Backup(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Backed up %d domain key(s):\n", len(domains))
	for _, d := range domains {
		fmt.Fprintf(out, "  %s\n", d)
	}
	return nil
}

func (a *app) keysRestore(ctx context.Context, out io.Writer, args []string) error {
	if _, err := parseFlags(flag.NewFlagSet("keys restore", flag.ContinueOnError), args, 0); err != nil {
		return err
	}
	v, err := a.openVault()
	if err != nil {
		return err
	}
	domains, err := v.Restore(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Restored %d domain key(s):\n", len(domains))
	for _, d := range domains {
		fmt.Fprintf(out, "  %s\n", d)
	}
	return nil
}

func (a *app) keysStatus(ctx context.Context, out io.Writer, args []string) error {
	if _, err := parseFlags(flag.NewFlagSet("keys status", flag.ContinueOnError), args, 0); err != nil {
		return err
	}
	local, err := a.keys.List()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Local domains: %d\n", len(local))
	for _, d := range local {
		fmt.Fprintf(out, "  %s\n", d)
	}

	v, err := a.openVault()
	if err != nil {
		return err
	}
	p, err := v.Fetch(ctx)
	switch {
	case errors.Is(err, vault.ErrNoBackup):
		fmt.Fprintln(out, "\nNo vault backup found. Run 'antns keys backup' to create one.")
	case err != nil:
		return err
	default:
		fmt.Fprintf(out, "\nVault backup from %s holds %d key(s).\n", p.CreatedAt.Format("2006-01-02 15:04:05 MST"), len(p.Keys))
	}
	return nil
}
