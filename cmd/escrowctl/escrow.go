package main

import (
	"context"
	"fmt"

	"atomicescrow/crypto"
	"atomicescrow/native/escrow"
)

func runDerive(a *app, args []string) error {
	fs := newFlagSet("derive", a)
	var maker, assetA addressFlag
	fs.Var(&maker, "maker", "maker address")
	fs.Var(&assetA, "asset-a", "deposited mint, to also print the custody address")
	bump := fs.Uint8("bump", 0, "use this bump instead of searching for the canonical one")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(fs, "maker"); err != nil {
		return err
	}
	cfg, err := a.config()
	if err != nil {
		return err
	}
	program, err := cfg.Program()
	if err != nil {
		return err
	}
	record, b, err := deriveRecord(program, maker.addr, fs.Changed("bump"), *bump)
	if err != nil {
		return err
	}
	a.printf("record=%s bump=%d\n", record, b)
	if fs.Changed("asset-a") {
		custody, err := escrow.CustodyAddress(record, assetA.addr)
		if err != nil {
			return err
		}
		a.printf("custody=%s\n", custody)
	}
	return nil
}

func deriveRecord(program, maker crypto.Address, explicit bool, bump uint8) (crypto.Address, uint8, error) {
	if explicit {
		record, err := escrow.DeriveAuthority(program, maker, bump)
		return record, bump, err
	}
	return escrow.FindAuthority(program, maker)
}

func runOpen(a *app, args []string) error {
	fs := newFlagSet("open", a)
	makerKey := fs.String("maker", "", "keystore of the maker")
	var assetA, assetB addressFlag
	fs.Var(&assetA, "asset-a", "mint deposited by the maker")
	fs.Var(&assetB, "asset-b", "mint the maker wants in return")
	receive := fs.Uint64("receive", 0, "units of asset B demanded")
	give := fs.Uint64("give", 0, "units of asset A deposited")
	bump := fs.Uint8("bump", 0, "bump seed (default: canonical bump)")
	wide := fs.Bool("wide", false, "use the 64-byte amount encoding")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(fs, "maker", "asset-a", "asset-b", "receive", "give"); err != nil {
		return err
	}
	key, err := a.signer(*makerKey)
	if err != nil {
		return err
	}
	proc, err := a.processor()
	if err != nil {
		return err
	}
	maker := key.Address()
	record, b, err := deriveRecord(proc.Engine().ProgramID(), maker, fs.Changed("bump"), *bump)
	if err != nil {
		return err
	}
	makerHolding, err := crypto.AssociatedHoldingAddress(maker, assetA.addr)
	if err != nil {
		return err
	}
	custody, err := escrow.CustodyAddress(record, assetA.addr)
	if err != nil {
		return err
	}
	layout := escrow.LayoutCompact
	if *wide {
		layout = escrow.LayoutWide
	}
	accounts := escrow.OpenAccounts{
		Maker:        maker,
		Record:       record,
		AssetA:       assetA.addr,
		AssetB:       assetB.addr,
		MakerHolding: makerHolding,
		Custody:      custody,
	}
	data := escrow.EncodeOpen(escrow.OpenRequest{
		Bump:            b,
		AmountToReceive: *receive,
		AmountToGive:    *give,
		Layout:          layout,
	})
	res, err := proc.Process(context.Background(), []crypto.Address{maker}, accounts.List(), data)
	if err != nil {
		return err
	}
	a.printf("record=%s custody=%s bump=%d layout=%s\n", res.Record, custody, res.Escrow.Bump, res.Escrow.Layout)
	return nil
}

func runFulfill(a *app, args []string) error {
	fs := newFlagSet("fulfill", a)
	takerKey := fs.String("taker", "", "keystore of the taker")
	var record addressFlag
	fs.Var(&record, "record", "escrow record address")
	wide := fs.Bool("wide", false, "require a wide-layout record")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(fs, "taker", "record"); err != nil {
		return err
	}
	key, err := a.signer(*takerKey)
	if err != nil {
		return err
	}
	proc, err := a.processor()
	if err != nil {
		return err
	}
	rec, err := proc.Engine().Lookup(record.addr)
	if err != nil {
		return err
	}
	taker := key.Address()
	holdings, err := associatedHoldings(
		[2]crypto.Address{taker, rec.AssetA},
		[2]crypto.Address{taker, rec.AssetB},
		[2]crypto.Address{record.addr, rec.AssetA},
		[2]crypto.Address{rec.Maker, rec.AssetB},
	)
	if err != nil {
		return err
	}
	accounts := escrow.FulfillAccounts{
		Taker:         taker,
		Maker:         rec.Maker,
		Record:        record.addr,
		AssetA:        rec.AssetA,
		AssetB:        rec.AssetB,
		TakerHoldingA: holdings[0],
		TakerHoldingB: holdings[1],
		Custody:       holdings[2],
		MakerHoldingB: holdings[3],
	}
	data := escrow.EncodeFulfill()
	if *wide {
		data = []byte{byte(escrow.OpFulfillWide)}
	}
	res, err := proc.Process(context.Background(), []crypto.Address{taker}, accounts.List(), data)
	if err != nil {
		return err
	}
	a.printf("filled record=%s gave=%d received=%d\n", res.Record, res.Escrow.AmountToGive, res.Escrow.AmountToReceive)
	return nil
}

func runCancel(a *app, args []string) error {
	fs := newFlagSet("cancel", a)
	makerKey := fs.String("maker", "", "keystore of the maker")
	var record addressFlag
	fs.Var(&record, "record", "escrow record address")
	wide := fs.Bool("wide", false, "require a wide-layout record")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(fs, "maker", "record"); err != nil {
		return err
	}
	key, err := a.signer(*makerKey)
	if err != nil {
		return err
	}
	proc, err := a.processor()
	if err != nil {
		return err
	}
	rec, err := proc.Engine().Lookup(record.addr)
	if err != nil {
		return err
	}
	maker := key.Address()
	holdings, err := associatedHoldings(
		[2]crypto.Address{maker, rec.AssetA},
		[2]crypto.Address{record.addr, rec.AssetA},
	)
	if err != nil {
		return err
	}
	accounts := escrow.CancelAccounts{
		Maker:        maker,
		Record:       record.addr,
		MakerHolding: holdings[0],
		Custody:      holdings[1],
	}
	data := escrow.EncodeCancel()
	if *wide {
		data = []byte{byte(escrow.OpCancelWide)}
	}
	res, err := proc.Process(context.Background(), []crypto.Address{maker}, accounts.List(), data)
	if err != nil {
		return err
	}
	a.printf("cancelled record=%s refunded=%d\n", res.Record, res.Escrow.AmountToGive)
	return nil
}

func runShow(a *app, args []string) error {
	fs := newFlagSet("show", a)
	var record addressFlag
	fs.Var(&record, "record", "escrow record address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(fs, "record"); err != nil {
		return err
	}
	proc, err := a.processor()
	if err != nil {
		return err
	}
	rec, err := proc.Engine().Lookup(record.addr)
	if err != nil {
		return err
	}
	a.printf("record=%s\nmaker=%s\nasset_a=%s\nasset_b=%s\namount_to_receive=%d\namount_to_give=%d\nbump=%d\nlayout=%s\n",
		record.addr, rec.Maker, rec.AssetA, rec.AssetB, rec.AmountToReceive, rec.AmountToGive, rec.Bump, rec.Layout)
	return nil
}

// associatedHoldings resolves (wallet, mint) pairs to holding addresses.
func associatedHoldings(pairs ...[2]crypto.Address) ([]crypto.Address, error) {
	out := make([]crypto.Address, len(pairs))
	for i, p := range pairs {
		addr, err := crypto.AssociatedHoldingAddress(p[0], p[1])
		if err != nil {
			return nil, fmt.Errorf("holding of %s for %s: %w", p[0], p[1], err)
		}
		out[i] = addr
	}
	return out, nil
}
