package main

import (
	"fmt"
	"os"

	"atomicescrow/crypto"
)

func runKeygen(a *app, args []string) error {
	fs := newFlagSet("keygen", a)
	out := fs.String("out", "", "keystore file to write")
	force := fs.Bool("force", false, "overwrite an existing keystore file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(fs, "out"); err != nil {
		return err
	}
	if !*force {
		if _, err := os.Stat(*out); err == nil {
			return fmt.Errorf("keystore file %s already exists (use --force to overwrite)", *out)
		} else if !os.IsNotExist(err) {
			return err
		}
	}
	pass, err := a.pass.Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(*out, key, pass); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	a.printf("%s\n", key.Address())
	return nil
}

func runAddress(a *app, args []string) error {
	fs := newFlagSet("address", a)
	path := fs.String("keystore", "", "keystore file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(fs, "keystore"); err != nil {
		return err
	}
	key, err := a.signer(*path)
	if err != nil {
		return err
	}
	a.printf("%s\n", key.Address())
	return nil
}
