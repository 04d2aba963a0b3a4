package main

import (
	"encoding/hex"
	"fmt"

	"atomicescrow/core/types"
	"atomicescrow/crypto"
)

// addressFlag lets pflag parse base58 addresses directly.
type addressFlag struct{ addr crypto.Address }

func (f *addressFlag) String() string {
	if f.addr.IsZero() {
		return ""
	}
	return f.addr.String()
}

func (f *addressFlag) Set(s string) error {
	addr, err := crypto.ParseAddress(s)
	if err != nil {
		return err
	}
	f.addr = addr
	return nil
}

func (f *addressFlag) Type() string { return "address" }

func runAirdrop(a *app, args []string) error {
	fs := newFlagSet("airdrop", a)
	var to addressFlag
	fs.Var(&to, "to", "address to credit")
	lamports := fs.Uint64("lamports", 0, "lamports to credit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(fs, "to", "lamports"); err != nil {
		return err
	}
	mgr, err := a.state()
	if err != nil {
		return err
	}
	if err := mgr.Airdrop(to.addr, *lamports); err != nil {
		return err
	}
	balance, err := mgr.Lamports(to.addr)
	if err != nil {
		return err
	}
	a.printf("%s lamports=%d\n", to.addr, balance)
	return nil
}

func runMint(a *app, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: mint create|to [flags]")
	}
	switch args[0] {
	case "create":
		return runMintCreate(a, args[1:])
	case "to":
		return runMintTo(a, args[1:])
	default:
		return fmt.Errorf("unknown mint subcommand %q", args[0])
	}
}

func runMintCreate(a *app, args []string) error {
	fs := newFlagSet("mint create", a)
	payer := fs.String("payer", "", "keystore of the payer and mint authority")
	decimals := fs.Uint8("decimals", 6, "decimal places of the asset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(fs, "payer"); err != nil {
		return err
	}
	key, err := a.signer(*payer)
	if err != nil {
		return err
	}
	mgr, err := a.state()
	if err != nil {
		return err
	}
	mintKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	mint := mintKey.Address()
	ictx := &types.InvokeContext{Signers: []crypto.Address{key.Address()}}
	if err := mgr.CreateMint(ictx, key.Address(), mint, key.Address(), *decimals); err != nil {
		return err
	}
	a.printf("%s\n", mint)
	return nil
}

func runMintTo(a *app, args []string) error {
	fs := newFlagSet("mint to", a)
	authority := fs.String("authority", "", "keystore of the mint authority")
	var mint, wallet addressFlag
	fs.Var(&mint, "mint", "mint address")
	fs.Var(&wallet, "wallet", "wallet whose associated holding receives the units")
	amount := fs.Uint64("amount", 0, "units to issue")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(fs, "authority", "mint", "wallet", "amount"); err != nil {
		return err
	}
	key, err := a.signer(*authority)
	if err != nil {
		return err
	}
	mgr, err := a.state()
	if err != nil {
		return err
	}
	holding, err := crypto.AssociatedHoldingAddress(wallet.addr, mint.addr)
	if err != nil {
		return err
	}
	ictx := &types.InvokeContext{Signers: []crypto.Address{key.Address()}}
	if err := mgr.MintTo(ictx, mint.addr, holding, *amount); err != nil {
		return err
	}
	h, err := mgr.Holding(holding)
	if err != nil {
		return err
	}
	a.printf("%s amount=%d\n", holding, h.Amount)
	return nil
}

func runHolding(a *app, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: holding create|show [flags]")
	}
	switch args[0] {
	case "create":
		return runHoldingCreate(a, args[1:])
	case "show":
		return runHoldingShow(a, args[1:])
	default:
		return fmt.Errorf("unknown holding subcommand %q", args[0])
	}
}

func runHoldingCreate(a *app, args []string) error {
	fs := newFlagSet("holding create", a)
	funder := fs.String("funder", "", "keystore of the funding account")
	var wallet, mint addressFlag
	fs.Var(&wallet, "wallet", "owner of the new holding (defaults to the funder)")
	fs.Var(&mint, "mint", "mint address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(fs, "funder", "mint"); err != nil {
		return err
	}
	key, err := a.signer(*funder)
	if err != nil {
		return err
	}
	owner := wallet.addr
	if !fs.Changed("wallet") {
		owner = key.Address()
	}
	mgr, err := a.state()
	if err != nil {
		return err
	}
	holding, err := crypto.AssociatedHoldingAddress(owner, mint.addr)
	if err != nil {
		return err
	}
	ictx := &types.InvokeContext{Signers: []crypto.Address{key.Address()}}
	if err := mgr.CreateHolding(ictx, types.CreateHoldingParams{
		Funder:  key.Address(),
		Holding: holding,
		Wallet:  owner,
		Mint:    mint.addr,
	}); err != nil {
		return err
	}
	a.printf("%s\n", holding)
	return nil
}

func runHoldingShow(a *app, args []string) error {
	fs := newFlagSet("holding show", a)
	var address, wallet, mint addressFlag
	fs.Var(&address, "address", "holding address")
	fs.Var(&wallet, "wallet", "owner, with --mint, to locate the associated holding")
	fs.Var(&mint, "mint", "mint address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	holding := address.addr
	if !fs.Changed("address") {
		if err := requireFlag(fs, "wallet", "mint"); err != nil {
			return fmt.Errorf("%w (or pass --address)", err)
		}
		var err error
		if holding, err = crypto.AssociatedHoldingAddress(wallet.addr, mint.addr); err != nil {
			return err
		}
	}
	mgr, err := a.state()
	if err != nil {
		return err
	}
	h, err := mgr.Holding(holding)
	if err != nil {
		return err
	}
	a.printf("holding=%s mint=%s owner=%s amount=%d\n", holding, h.Mint, h.Owner, h.Amount)
	return nil
}

func runDigest(a *app, args []string) error {
	fs := newFlagSet("digest", a)
	if err := fs.Parse(args); err != nil {
		return err
	}
	mgr, err := a.state()
	if err != nil {
		return err
	}
	digest, err := mgr.Digest()
	if err != nil {
		return err
	}
	root, err := mgr.StateRoot()
	if err != nil {
		return err
	}
	a.printf("digest=%s root=%s\n", hex.EncodeToString(digest[:]), hex.EncodeToString(root[:]))
	return nil
}
