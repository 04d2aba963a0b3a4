// escrowctl drives the atomic-swap escrow program against a local LevelDB
// ledger: key management, ledger setup helpers and the Open, Fulfill and
// Cancel instructions.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/pflag"

	"atomicescrow/crypto"
)

const defaultConfig = "./config.toml"

type globalOptions struct {
	configPath string
	lightKDF   bool
	passEnv    string
}

type command struct {
	summary string
	run     func(app *app, args []string) error
}

var commands = map[string]command{
	"keygen":  {"generate an operator key and write an encrypted keystore", runKeygen},
	"address": {"print the address stored in a keystore", runAddress},
	"airdrop": {"credit lamports to an address", runAirdrop},
	"mint":    {"create a mint or issue units (mint create|to)", runMint},
	"holding": {"create or inspect an associated holding (holding create|show)", runHolding},
	"derive":  {"derive the escrow record and custody addresses of a maker", runDerive},
	"open":    {"open an escrow as maker", runOpen},
	"fulfill": {"fulfill an open escrow as taker", runFulfill},
	"cancel":  {"cancel an open escrow as maker", runCancel},
	"show":    {"decode an open escrow record", runShow},
	"digest":  {"print the ledger digest", runDigest},
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var opts globalOptions
	flagSet := pflag.NewFlagSet("escrowctl", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVarP(&opts.configPath, "config", "c", defaultConfig, "path to the escrow config file")
	flagSet.BoolVar(&opts.lightKDF, "lightkdf", false, "write keystores with light scrypt parameters")
	flagSet.StringVar(&opts.passEnv, "pass-env", "", "environment variable holding the keystore passphrase")
	flagSet.Usage = func() { usage(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	rest := flagSet.Args()
	if len(rest) == 0 {
		usage(stderr, flagSet)
		return errors.New("missing command")
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		usage(stderr, flagSet)
		return fmt.Errorf("unknown command %q", rest[0])
	}
	if opts.lightKDF {
		crypto.UseLightKDF()
	}

	a := newApp(opts, stdout, stderr)
	defer a.close()
	return cmd.run(a, rest[1:])
}

func usage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintln(w, "Usage: escrowctl [global flags] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global flags:")
	fmt.Fprint(w, flagSet.FlagUsages())
}

func newFlagSet(name string, a *app) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func requireFlag(fs *pflag.FlagSet, names ...string) error {
	for _, name := range names {
		if !fs.Changed(name) {
			return fmt.Errorf("--%s is required", name)
		}
	}
	return nil
}
