package main

import (
	"context"
	"crypto/ed25519"
	"errors"
	"flag"
	"fmt"
	"io"

	"antns/internal/naming"
	dErrors "antns/pkg/domain-errors"
)

func (a *app) namesRegister(ctx context.Context, out io.Writer, args []string) error {
	pos, err := parseFlags(flag.NewFlagSet("names register", flag.ContinueOnError), args, 1)
	if err != nil {
		return err
	}
	domain := naming.NormalizeDomain(pos[0])

	reg, err := a.mutator.Register(ctx, domain)
	if err != nil {
		return fmt.Errorf("register %s: %w", domain, err)
	}
	path, err := a.keys.Save(domain, reg.OwnerKey)
	if err != nil {
		return fmt.Errorf("domain registered but the owner key could not be saved: %w", err)
	}

	fmt.Fprintf(out, "Domain registered: %s\n", domain)
	fmt.Fprintf(out, "Register address: %s\n", reg.Address)
	fmt.Fprintf(out, "Owner key saved to: %s\n", path)
	fmt.Fprintf(out, "\nAdd records with: antns records add --name %s <type> <name> <value>\n", domain)
	return nil
}

func (a *app) namesLookup(ctx context.Context, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("names lookup", flag.ContinueOnError)
	unverified := fs.Bool("unverified", false, "read only the newest entry without verifying it")
	pos, err := parseFlags(fs, args, 1)
	if err != nil {
		return err
	}
	domain := naming.NormalizeDomain(pos[0])

	if *unverified {
		target, err := a.resolver.QuickLookupUnverified(ctx, domain)
		if err != nil {
			return reportNotFound(out, domain, err)
		}
		fmt.Fprintf(out, "%s -> %s\n", domain, target)
		fmt.Fprintln(out, "WARNING: unverified result; the newest entry may be forged.")
		return nil
	}

	set, err := a.resolver.Resolve(ctx, domain)
	if err != nil {
		return reportNotFound(out, domain, err)
	}
	if len(set.Records) == 0 {
		fmt.Fprintf(out, "Domain '%s' is registered but its record set is empty.\n", domain)
		return nil
	}
	fmt.Fprintf(out, "Records for domain '%s':\n\n", domain)
	printRecords(out, set.Records)
	if target, ok := set.Target(); ok {
		fmt.Fprintf(out, "\nTarget: %s\n", target)
	}
	return nil
}

func (a *app) namesHistory(ctx context.Context, out io.Writer, args []string) error {
	pos, err := parseFlags(flag.NewFlagSet("names history", flag.ContinueOnError), args, 1)
	if err != nil {
		return err
	}
	domain := naming.NormalizeDomain(pos[0])

	entries, err := a.resolver.History(ctx, domain)
	if err != nil {
		return reportNotFound(out, domain, err)
	}

	for i, e := range entries {
		switch {
		case e.Kind == naming.EntryOwner:
			fmt.Fprintf(out, "Entry %d (owner):\n  Public key: %s\n", i+1, e.PublicKey)
		case e.Valid:
			fmt.Fprintf(out, "Entry %d (valid):\n", i+1)
		default:
			fmt.Fprintf(out, "Entry %d (invalid):\n", i+1)
		}
		fmt.Fprintf(out, "  Chunk: %s\n", e.ChunkAddress)
		for _, r := range e.Records {
			fmt.Fprintf(out, "  %s %s: %s\n", r.Type, r.Name, r.Value)
		}
		switch e.Failure {
		case naming.FailureSignature:
			fmt.Fprintln(out, "  Reason: invalid signature (spam)")
		case naming.FailureParse:
			fmt.Fprintln(out, "  Reason: not a records document (corrupted)")
		case naming.FailureDownload:
			fmt.Fprintln(out, "  Reason: chunk could not be downloaded (corrupted)")
		}
		fmt.Fprintln(out)
	}

	stats := naming.CalculateStats(entries)
	fmt.Fprintln(out, "Statistics:")
	fmt.Fprintf(out, "  Total entries: %d\n", stats.Total)
	fmt.Fprintf(out, "  Valid entries: %d\n", stats.Valid)
	fmt.Fprintf(out, "  Spam entries: %d\n", stats.Spam)
	fmt.Fprintf(out, "  Corrupted entries: %d\n", stats.Corrupted)
	return nil
}

func (a *app) namesList(_ context.Context, out io.Writer, args []string) error {
	if _, err := parseFlags(flag.NewFlagSet("names list", flag.ContinueOnError), args, 0); err != nil {
		return err
	}
	domains, err := a.keys.List()
	if err != nil {
		return err
	}
	if len(domains) == 0 {
		fmt.Fprintln(out, "No domains found.")
		fmt.Fprintln(out, "Register a domain with: antns names register <domain>")
		return nil
	}
	fmt.Fprintln(out, "Locally owned domains:")
	for _, d := range domains {
		fmt.Fprintf(out, "  %s\n", d)
	}
	return nil
}

func (a *app) namesExport(_ context.Context, out io.Writer, args []string) error {
	pos, err := parseFlags(flag.NewFlagSet("names export", flag.ContinueOnError), args, 1)
	if err != nil {
		return err
	}
	key, err := a.keys.Load(pos[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "PRIVATE KEY (keep this secret):")
	fmt.Fprintln(out, naming.EncodePrivateKey(key))
	fmt.Fprintln(out, "\nPublic key:")
	fmt.Fprintln(out, naming.EncodePublicKey(key.Public().(ed25519.PublicKey)))
	fmt.Fprintln(out, "\nAnyone holding this key can update the domain.")
	return nil
}

func (a *app) namesImport(_ context.Context, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("names import", flag.ContinueOnError)
	key := fs.String("key", "", "hex private key")
	pos, err := parseFlags(fs, args, 1)
	if err != nil {
		return err
	}
	if *key == "" {
		return fmt.Errorf("%w: names import requires --key", errUsage)
	}
	meta, err := a.keys.Import(pos[0], *key)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Private key imported for %s\n", meta.Domain)
	fmt.Fprintf(out, "Public key: %s\n", meta.PublicKey)
	return nil
}

// reportNotFound prints lookup failures the user can act on and returns nil
// for them. Anything else is returned as an error.
func reportNotFound(out io.Writer, domain string, err error) error {
	switch {
	case errors.Is(err, naming.ErrRegisterNotFound):
		fmt.Fprintf(out, "Domain not registered: %s\n", domain)
	case errors.Is(err, naming.ErrCorruptRegistration):
		fmt.Fprintf(out, "Domain registration is corrupt: %s\n", domain)
		fmt.Fprintln(out, "Its first register entry is not a valid owner document.")
	case errors.Is(err, naming.ErrNoValidRecords):
		fmt.Fprintf(out, "Domain '%s' is registered but has no records.\n", domain)
		fmt.Fprintf(out, "\nAdd records with: antns records add --name %s <type> <name> <value>\n", domain)
	case errors.Is(err, naming.ErrNoTargetRecord):
		fmt.Fprintf(out, "Domain '%s' has records but no root ANT target.\n", domain)
	default:
		switch naming.Classify(err) {
		case dErrors.CodeUnavailable, dErrors.CodeTimeout:
			fmt.Fprintf(out, "Network unavailable while looking up %s: %v\n", domain, err)
		default:
			return fmt.Errorf("lookup %s: %w", domain, err)
		}
	}
	return nil
}

func printRecords(out io.Writer, records []naming.Record) {
	for i, r := range records {
		fmt.Fprintf(out, "[%d] %s %s %s\n", i, r.Type, r.Name, r.Value)
	}
}
