package announcement

// Network identifies which Bitcoin network an activation height schedule
// applies to.
type Network uint8

const (
	NetworkMainnet Network = iota
	NetworkTestnet
	NetworkSignet
	NetworkRegtest
	NetworkMutiny
)

// transferOwnershipActivation maps each network to the block height at
// which TransferOwnership announcements become valid. Zero elsewhere means
// no restriction.
var transferOwnershipActivation = map[Network]uint32{
	NetworkMainnet: 855_000,
	NetworkTestnet: 2_830_000,
	NetworkMutiny:  1_200_000,
}

// GenesisHeight returns the block height at which the indexer should start
// scanning for YUV activity on net, absent any stored progress or config
// override. No network has a published YUV launch height in this schedule,
// so every network starts from 0; operators who know a later safe height
// can skip ahead with a config override.
func GenesisHeight(net Network) uint32 {
	return 0
}
