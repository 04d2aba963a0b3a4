package errors

import stderrors "errors"

var (
	ErrAccountNotFound   = stderrors.New("ledger: account not found")
	ErrAccountExists     = stderrors.New("ledger: account already exists")
	ErrNotHolding        = stderrors.New("ledger: account is not a holding")
	ErrNotMint           = stderrors.New("ledger: account is not a mint")
	ErrMintMismatch      = stderrors.New("ledger: holding mint mismatch")
	ErrInsufficientFunds = stderrors.New("ledger: insufficient funds")
	ErrBalanceOverflow   = stderrors.New("ledger: balance overflow")
	ErrMissingSignature  = stderrors.New("ledger: missing required signature")
	ErrWrongAuthority    = stderrors.New("ledger: authority does not own account")
	ErrHoldingNotEmpty   = stderrors.New("ledger: holding balance not zero")
	ErrInvalidHolding    = stderrors.New("ledger: holding address is not the associated address")
	ErrNotProgramOwned   = stderrors.New("ledger: account not owned by invoking program")
	ErrRentNotMet        = stderrors.New("ledger: lamports below rent-exempt minimum")
)
