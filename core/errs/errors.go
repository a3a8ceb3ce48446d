package errs

// Kind classifies an engine error for transport-layer mapping.
type Kind int

const (
	KindNotFound Kind = iota
	KindPermission
	KindInvalidState
	KindAlreadyExists
	KindLimitExceeded
	KindBudgetExhausted
	KindInsufficient
)

// Error is a typed engine error. All engine operations fail with one of the
// sentinel values below so callers can branch with errors.Is.
type Error struct {
	Kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

// New creates a sentinel engine error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

// KindOf extracts the Kind from err, walking the wrap chain.
// Unclassified errors report KindInvalidState.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return KindInvalidState
}

// Not found.
var (
	ErrCollectionUnknown   = New(KindNotFound, "collection unknown")
	ErrNoAvailableNftID    = New(KindNotFound, "no available nft id")
	ErrResourceDoesntExist = New(KindNotFound, "resource doesn't exist")
	ErrBaseDoesntExist     = New(KindNotFound, "base doesn't exist")
	ErrPartDoesntExist     = New(KindNotFound, "part doesn't exist")
	ErrUnknownOffer        = New(KindNotFound, "unknown offer")
	ErrTokenDoesNotExist   = New(KindNotFound, "token does not exist")
	ErrPropertyNotFound    = New(KindNotFound, "property not found")
)

// Permission.
var (
	ErrNoPermission                          = New(KindPermission, "no permission")
	ErrPermission                            = New(KindPermission, "permission error")
	ErrCannotBuyOwnToken                     = New(KindPermission, "cannot buy own token")
	ErrCannotOfferOnOwnToken                 = New(KindPermission, "cannot offer on own token")
	ErrCannotWithdrawOffer                   = New(KindPermission, "cannot withdraw offer")
	ErrMustBeDirectParent                    = New(KindPermission, "equipper must be the item's direct parent")
	ErrUnequipperMustOwnEitherItemOrEquipper = New(KindPermission, "unequipper must own either item or equipper")
)

// State invariant.
var (
	ErrCollectionNotEmpty              = New(KindInvalidState, "collection not empty")
	ErrCollectionFullOrLocked          = New(KindInvalidState, "collection full or locked")
	ErrNoAvailableCollectionID         = New(KindInvalidState, "no available collection id")
	ErrResourceAlreadyExists           = New(KindAlreadyExists, "resource already exists")
	ErrNftAlreadyExists                = New(KindAlreadyExists, "nft already exists")
	ErrEmptyResource                   = New(KindInvalidState, "empty resource")
	ErrNftIsLocked                     = New(KindInvalidState, "nft is locked")
	ErrCannotSendToDescendentOrSelf    = New(KindInvalidState, "cannot send to descendent or self")
	ErrCannotSendEquippedItem          = New(KindInvalidState, "cannot send equipped item")
	ErrNonTransferable                 = New(KindInvalidState, "non-transferable")
	ErrResourceNotPending              = New(KindInvalidState, "resource not pending")
	ErrCannotAcceptNonOwnedNft         = New(KindInvalidState, "cannot accept non-owned nft")
	ErrCannotAcceptToNewOwner          = New(KindInvalidState, "cannot accept to new owner")
	ErrCannotRejectNonOwnedNft         = New(KindInvalidState, "cannot reject non-owned nft")
	ErrCannotRejectNonPendingNft       = New(KindInvalidState, "cannot reject non-pending nft")
	ErrAlreadyEquipped                 = New(KindInvalidState, "already equipped")
	ErrCantEquipFixedPart              = New(KindInvalidState, "cannot equip a fixed part")
	ErrNoEquippableOnFixedPart         = New(KindInvalidState, "no equippable on fixed part")
	ErrNoResourceForThisBaseFoundOnNft = New(KindInvalidState, "no resource for this base found on nft")
	ErrCollectionNotEquippable         = New(KindInvalidState, "collection not equippable")
	ErrItemHasNoResourceToEquipThere   = New(KindInvalidState, "item has no resource to equip there")
	ErrNeedsDefaultThemeFirst          = New(KindInvalidState, "needs default theme first")
	ErrItemNotEquipped                 = New(KindInvalidState, "item not equipped")
	ErrEquipperDoesntExist             = New(KindInvalidState, "equipper doesn't exist")
	ErrItemDoesntExist                 = New(KindInvalidState, "item doesn't exist")
)

// Limits.
var (
	ErrTooLong                = New(KindLimitExceeded, "too long")
	ErrTooManyProperties      = New(KindLimitExceeded, "too many properties")
	ErrExceedsMaxPartsPerBase = New(KindLimitExceeded, "exceeds max parts per base")
	ErrTooManyEquippables     = New(KindLimitExceeded, "too many equippables")
	ErrTooManyPriorities      = New(KindLimitExceeded, "too many priorities")
	ErrTooManyResources       = New(KindLimitExceeded, "too many resources on mint")
)

// Recursion budget.
var ErrTooManyRecursions = New(KindBudgetExhausted, "too many recursions")

// Marketplace.
var (
	ErrTokenNotForSale          = New(KindInvalidState, "token not for sale")
	ErrCannotUnlistToken        = New(KindInvalidState, "cannot unlist token")
	ErrCannotListNftOwnedByNft  = New(KindInvalidState, "cannot list nft owned by nft")
	ErrOfferTooLow              = New(KindInvalidState, "offer too low")
	ErrAlreadyOffered           = New(KindAlreadyExists, "already offered")
	ErrOfferHasExpired          = New(KindInvalidState, "offer has expired")
	ErrListingHasExpired        = New(KindInvalidState, "listing has expired")
	ErrPriceDiffersFromExpected = New(KindInvalidState, "price differs from expected")
	ErrMarketplaceOwnerNotSet   = New(KindInvalidState, "marketplace owner not set")
)

// Ledger.
var (
	ErrInsufficientBalance = New(KindInsufficient, "insufficient balance")
	ErrAccountUnknown      = New(KindNotFound, "account unknown")
	ErrInvalidAmount       = New(KindInvalidState, "invalid amount")
)
