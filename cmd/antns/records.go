package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"

	"antns/internal/naming"
)

// domainFlags registers the --name flag shared by every records command.
func domainFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return fs, fs.String("name", "", "domain name")
}

func requireDomain(cmd, domain string) (string, error) {
	if domain == "" {
		return "", fmt.Errorf("%w: %s requires --name", errUsage, cmd)
	}
	return naming.NormalizeDomain(domain), nil
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%w: index must be a non-negative integer, got %q", errUsage, s)
	}
	return i, nil
}

func (a *app) recordsList(ctx context.Context, out io.Writer, args []string) error {
	fs, name := domainFlags("records list")
	if _, err := parseFlags(fs, args, 0); err != nil {
		return err
	}
	domain, err := requireDomain(fs.Name(), *name)
	if err != nil {
		return err
	}

	records, err := a.resolver.Records(ctx, domain)
	if err != nil {
		return reportNotFound(out, domain, err)
	}
	if len(records) == 0 {
		fmt.Fprintf(out, "No records found for domain: %s\n", domain)
		return nil
	}
	fmt.Fprintf(out, "Records for domain '%s':\n\n", domain)
	printRecords(out, records)
	return nil
}

func (a *app) recordsAdd(ctx context.Context, out io.Writer, args []string) error {
	fs, name := domainFlags("records add")
	pos, err := parseFlags(fs, args, 3)
	if err != nil {
		return err
	}
	domain, err := requireDomain(fs.Name(), *name)
	if err != nil {
		return err
	}
	record := naming.Record{Type: pos[0], Name: pos[1], Value: pos[2]}
	if err := naming.ValidateRecord(record); err != nil {
		return err
	}
	owner, err := a.keys.Load(domain)
	if err != nil {
		return err
	}

	pub, err := a.mutator.Add(ctx, domain, owner, record)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Record added to %s (chunk %s)\n", domain, pub.ChunkAddress)
	return nil
}

func (a *app) recordsDelete(ctx context.Context, out io.Writer, args []string) error {
	fs, name := domainFlags("records delete")
	pos, err := parseFlags(fs, args, 1)
	if err != nil {
		return err
	}
	domain, err := requireDomain(fs.Name(), *name)
	if err != nil {
		return err
	}
	index, err := parseIndex(pos[0])
	if err != nil {
		return err
	}
	owner, err := a.keys.Load(domain)
	if err != nil {
		return err
	}

	pub, err := a.mutator.Delete(ctx, domain, owner, index)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Record %d deleted from %s (chunk %s)\n", index, domain, pub.ChunkAddress)
	return nil
}

func (a *app) recordsUpdate(ctx context.Context, out io.Writer, args []string) error {
	fs, name := domainFlags("records update")
	pos, err := parseFlags(fs, args, 4)
	if err != nil {
		return err
	}
	domain, err := requireDomain(fs.Name(), *name)
	if err != nil {
		return err
	}
	index, err := parseIndex(pos[0])
	if err != nil {
		return err
	}
	record := naming.Record{Type: pos[1], Name: pos[2], Value: pos[3]}
	if err := naming.ValidateRecord(record); err != nil {
		return err
	}
	owner, err := a.keys.Load(domain)
	if err != nil {
		return err
	}

	pub, err := a.mutator.Update(ctx, domain, owner, index, record)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Record %d updated for %s (chunk %s)\n", index, domain, pub.ChunkAddress)
	return nil
}

func (a *app) recordsSetTarget(ctx context.Context, out io.Writer, args []string) error {
	fs, name := domainFlags("records set-target")
	pos, err := parseFlags(fs, args, 1)
	if err != nil {
		return err
	}
	domain, err := requireDomain(fs.Name(), *name)
	if err != nil {
		return err
	}
	owner, err := a.keys.Load(domain)
	if err != nil {
		return err
	}

	if _, err := a.mutator.SetTarget(ctx, domain, owner, pos[0]); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s now points at %s\n", domain, pos[0])
	return nil
}
