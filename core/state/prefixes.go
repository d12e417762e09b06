package state

var (
	balancePrefix    = []byte("balance/")
	rolePrefix       = []byte("role/")
	listingPrefix    = []byte("market/listing/")
	assetOwnerPrefix = []byte("asset/owner/")
	escrowPrefix     = []byte("escrow/record/")

	activeIndexKeyBytes     = []byte("market/active-index")
	escrowSequenceKeyBytes  = []byte("escrow/sequence")
	platformParamsKeyBytes  = []byte("platform/params")
	platformBalanceKeyBytes = []byte("platform/balance")
)
