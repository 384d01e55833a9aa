package announcement

import (
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"github.com/yuvprotocol/yuvd/pixel"
)

func roundTrip(t *testing.T, a Announcement) Announcement {
	t.Helper()

	script, err := ToScript(a)
	require.NoError(t, err)

	parsed, err := FromScript(script)
	require.NoError(t, err)

	return parsed
}

func TestChromaAnnouncementRoundTrip(t *testing.T) {
	chroma := pixel.Chroma{1, 2, 3}
	a, err := NewChromaAnnouncement(chroma, "Satoshi", "SAT", 8, big.NewInt(21_000_000), true)
	require.NoError(t, err)

	parsed := roundTrip(t, a)
	got, ok := parsed.(*ChromaAnnouncement)
	require.True(t, ok)
	require.Equal(t, a.Chroma, got.Chroma)
	require.Equal(t, a.Name, got.Name)
	require.Equal(t, a.Symbol, got.Symbol)
	require.Equal(t, a.Decimal, got.Decimal)
	require.Equal(t, 0, a.MaxSupply.Cmp(got.MaxSupply))
	require.Equal(t, a.IsFreezable, got.IsFreezable)
}

func TestChromaAnnouncementRejectsShortName(t *testing.T) {
	_, err := NewChromaAnnouncement(pixel.Chroma{}, "ab", "SAT", 8, big.NewInt(1), false)
	require.ErrorIs(t, err, ErrInvalidNameLength)
}

func TestChromaAnnouncementRejectsShortSymbol(t *testing.T) {
	_, err := NewChromaAnnouncement(pixel.Chroma{}, "Satoshi", "SA", 8, big.NewInt(1), false)
	require.ErrorIs(t, err, ErrInvalidSymbolLength)
}

func TestIssueAnnouncementRoundTrip(t *testing.T) {
	a := NewIssueAnnouncement(pixel.Chroma{4, 5, 6}, pixel.NewLuma(5_000))

	parsed := roundTrip(t, a)
	got, ok := parsed.(*IssueAnnouncement)
	require.True(t, ok)
	require.Equal(t, a.Chroma, got.Chroma)
	require.Equal(t, a.Amount, got.Amount)
}

func TestFreezeAnnouncementRoundTrip(t *testing.T) {
	var txid chainhash.Hash
	txid[0] = 0xaa

	a := NewFreezeAnnouncement(pixel.Chroma{7}, wire.OutPoint{Hash: txid, Index: 3})

	parsed := roundTrip(t, a)
	got, ok := parsed.(*FreezeAnnouncement)
	require.True(t, ok)
	require.Equal(t, a.Chroma, got.Chroma)
	require.Equal(t, a.Outpoint, got.Outpoint)
}

func TestTransferOwnershipAnnouncementRoundTripAndActivation(t *testing.T) {
	script := make([]byte, 22)
	a, err := NewTransferOwnershipAnnouncement(pixel.Chroma{8}, script)
	require.NoError(t, err)

	parsed := roundTrip(t, a)
	got, ok := parsed.(*TransferOwnershipAnnouncement)
	require.True(t, ok)
	require.Equal(t, a.Chroma, got.Chroma)
	require.Equal(t, a.NewOwnerScript, got.NewOwnerScript)

	require.Equal(t, uint32(855_000), got.MinimalBlockHeight(NetworkMainnet))
	require.Equal(t, uint32(0), got.MinimalBlockHeight(NetworkRegtest))
}

func TestTransferOwnershipRejectsBadScriptLength(t *testing.T) {
	_, err := NewTransferOwnershipAnnouncement(pixel.Chroma{}, make([]byte, 4))
	require.ErrorIs(t, err, ErrInvalidOwnerScript)
}

func TestFromBytesRejectsShortAndBadPrefix(t *testing.T) {
	_, err := FromBytes([]byte{0, 1})
	require.ErrorIs(t, err, ErrShortLength)

	bad := append([]byte{0, 0, 0}, KindChroma[:]...)
	_, err = FromBytes(bad)
	require.ErrorIs(t, err, ErrInvalidPrefix)
}

func TestFromBytesRejectsUnknownKind(t *testing.T) {
	data := append(append([]byte{}, Prefix[:]...), 0xff, 0xff)
	_, err := FromBytes(data)
	require.ErrorIs(t, err, ErrUnknownKind)
}
