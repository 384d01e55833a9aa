package txcheck

import "errors"

// Errors returned by the isolated checker. These never depend on chain
// state: the same transaction always fails (or passes) isolated checking
// regardless of what the node has seen before.
var (
	ErrNotEnoughProofs           = errors.New("txcheck: number of proofs does not match number of tokenized outputs")
	ErrProofMappedToMissingIO    = errors.New("txcheck: proof references an input or output index that does not exist")
	ErrInvalidProof              = errors.New("txcheck: proof failed its own check against the referenced input or output")
	ErrIssueAnnouncementMissing  = errors.New("txcheck: issue transaction carries no matching issue announcement output")
	ErrIssueAnnouncementMismatch = errors.New("txcheck: issue announcement output does not match the provided announcement")
	ErrNotSameChroma             = errors.New("txcheck: issue transaction's output proofs do not all share one chroma")
	ErrAnnouncedAmountMismatch   = errors.New("txcheck: issue announcement amount does not match the sum of output proofs")
	ErrConservationRulesViolated = errors.New("txcheck: sum of input pixels does not equal sum of output pixels per chroma")
	ErrBurntTokensSpending       = errors.New("txcheck: transaction attempts to spend a burnt pixel")
	ErrMixedConfidentialProofs   = errors.New("txcheck: transaction mixes confidential and explicit-amount proofs")
	ErrBulletproofConservation   = errors.New("txcheck: confidential conservation signatures do not verify")
)

// Errors returned by the contextual checker. These depend on storage state
// and so can change their verdict as the node learns more.
var (
	ErrParentNotFound          = errors.New("txcheck: a referenced parent transaction is not yet known")
	ErrParentUtxoNotFound      = errors.New("txcheck: a referenced parent output does not exist or was already spent")
	ErrParentTransactionFrozen = errors.New("txcheck: a referenced input's outpoint is frozen")
	ErrIssueAlreadyAttached    = errors.New("txcheck: chroma already has an attached issue announcement")
	ErrNotChromaOwner          = errors.New("txcheck: transaction is not signed by the chroma's registered owner")
	ErrSupplyCapExceeded       = errors.New("txcheck: issuance would exceed the chroma's announced max supply")
	ErrChromaNotFreezable      = errors.New("txcheck: chroma's announcement does not permit freezes")
)
