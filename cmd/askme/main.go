// Command askme is a minimal holder client for driving the disclosure
// protocol against a server: manage committed fields, verify name
// ownership, and answer verification requests.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"askme/internal/apiclient"
	"askme/internal/commitment"
	"askme/internal/holder"
	"askme/internal/platform/logger"
	"askme/internal/reveal"
	"askme/internal/vault"
	"askme/internal/wallet"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "askme:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: askme [flags] <command> [args]

commands:
  set-field <name> <field> <value>   commit a field value for a subject name
  commitments <name>                 list local field commitments
  verify <name>                      sign the challenge and verify ownership
  requests <name>                    list verification requests for a name
  approve <name> <request-id> <reveal|no-reveal>
                                     approve a pending request
  reject <name> <request-id>         reject a pending request

flags:`)
	flag.PrintDefaults()
}

func run(args []string) error {
	fs := flag.NewFlagSet("askme", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "workflow server base URL")
	keyHex := fs.String("key", os.Getenv("ASKME_WALLET_KEY"), "wallet private key (hex); generated when empty")
	fs.Usage = usage
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		usage()
		return fmt.Errorf("missing command")
	}

	w, err := buildWallet(*keyHex)
	if err != nil {
		return err
	}
	engine := holder.NewEngine(
		vault.New(vault.NewInMemoryStore()),
		w,
		apiclient.New(*serverURL),
		logger.New(),
	)

	ctx := context.Background()
	command, rest := fs.Arg(0), fs.Args()[1:]
	switch command {
	case "set-field":
		return cmdSetField(ctx, engine, rest)
	case "commitments":
		return cmdCommitments(ctx, engine, rest)
	case "verify":
		return cmdVerify(ctx, engine, rest)
	case "requests":
		return cmdRequests(ctx, engine, rest)
	case "approve":
		return cmdApprove(ctx, engine, rest)
	case "reject":
		return cmdReject(ctx, engine, rest)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func buildWallet(keyHex string) (wallet.Wallet, error) {
	if keyHex != "" {
		return wallet.NewLocalWalletFromHex(keyHex)
	}
	return wallet.NewLocalWallet()
}

func connect(ctx context.Context, engine *holder.Engine, name string) error {
	if _, err := engine.ConnectWallet(ctx); err != nil {
		return err
	}
	return engine.SwitchSubject(ctx, name)
}

func cmdSetField(ctx context.Context, engine *holder.Engine, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("set-field needs <name> <field> <value>")
	}
	field, err := commitment.ParseFieldType(args[1])
	if err != nil {
		return err
	}
	if err := connect(ctx, engine, args[0]); err != nil {
		return err
	}
	fc, err := engine.SetField(ctx, field, args[2])
	if err != nil {
		return err
	}
	fmt.Printf("%s committed\n  valueHash: %s\n  fieldHash: %s\n", field, fc.ValueHash, fc.FieldHash)
	return nil
}

func cmdCommitments(ctx context.Context, engine *holder.Engine, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("commitments needs <name>")
	}
	if err := connect(ctx, engine, args[0]); err != nil {
		return err
	}
	commitments, err := engine.Commitments(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tFIELD HASH")
	for _, fc := range commitments {
		fmt.Fprintf(tw, "%s\t%s\n", fc.Type, fc.FieldHash)
	}
	return tw.Flush()
}

func cmdVerify(ctx context.Context, engine *holder.Engine, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("verify needs <name>")
	}
	if err := connect(ctx, engine, args[0]); err != nil {
		return err
	}
	assertion, err := engine.VerifyOwnership(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("verified %s as %s\n", assertion.Name, assertion.ClaimedOwnerAddress)
	return nil
}

func cmdRequests(ctx context.Context, engine *holder.Engine, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("requests needs <name>")
	}
	if err := connect(ctx, engine, args[0]); err != nil {
		return err
	}
	if err := engine.Refresh(ctx); err != nil {
		return err
	}
	pending, other := engine.Requests()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFIELD\tVERIFIER\tSTATUS")
	for _, r := range append(pending, other...) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Field, r.VerifierAddress, r.Status)
	}
	return tw.Flush()
}

func cmdApprove(ctx context.Context, engine *holder.Engine, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("approve needs <name> <request-id> <reveal|no-reveal>")
	}
	mode, err := reveal.ParseMode(args[2])
	if err != nil {
		return err
	}
	if err := connect(ctx, engine, args[0]); err != nil {
		return err
	}
	if err := engine.Refresh(ctx); err != nil {
		return err
	}
	if err := engine.Approve(ctx, args[1], mode); err != nil {
		return err
	}
	fmt.Printf("approved %s (%s)\n", args[1], mode)
	return nil
}

func cmdReject(ctx context.Context, engine *holder.Engine, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("reject needs <name> <request-id>")
	}
	if err := connect(ctx, engine, args[0]); err != nil {
		return err
	}
	if err := engine.Refresh(ctx); err != nil {
		return err
	}
	if err := engine.Reject(ctx, args[1]); err != nil {
		return err
	}
	fmt.Printf("rejected %s\n", args[1])
	return nil
}
