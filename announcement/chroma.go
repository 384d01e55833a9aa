package announcement

import (
	"bytes"
	"math/big"

	"github.com/yuvprotocol/yuvd/pixel"
)

const (
	minNameSize   = 3
	maxNameSize   = 20
	minSymbolSize = 3
	maxSymbolSize = 6
)

// ChromaAnnouncement registers a chroma's human-readable metadata and
// supply/freeze policy. It is the first announcement an issuer makes for a
// new token kind.
type ChromaAnnouncement struct {
	Chroma      pixel.Chroma
	Name        string
	Symbol      string
	Decimal     uint8
	MaxSupply   *big.Int
	IsFreezable bool
}

// NewChromaAnnouncement validates name/symbol lengths and builds a
// ChromaAnnouncement.
func NewChromaAnnouncement(chroma pixel.Chroma, name, symbol string, decimal uint8, maxSupply *big.Int, isFreezable bool) (*ChromaAnnouncement, error) {
	if len(name) < minNameSize || len(name) > maxNameSize {
		return nil, ErrInvalidNameLength
	}
	if len(symbol) < minSymbolSize || len(symbol) > maxSymbolSize {
		return nil, ErrInvalidSymbolLength
	}

	return &ChromaAnnouncement{
		Chroma:      chroma,
		Name:        name,
		Symbol:      symbol,
		Decimal:     decimal,
		MaxSupply:   maxSupply,
		IsFreezable: isFreezable,
	}, nil
}

func (c *ChromaAnnouncement) Kind() Kind { return KindChroma }

func (c *ChromaAnnouncement) MinimalBlockHeight(Network) uint32 { return 0 }

func (c *ChromaAnnouncement) encodeData(buf *bytes.Buffer) {
	buf.Write(c.Chroma[:])

	buf.WriteByte(byte(len(c.Name)))
	buf.WriteString(c.Name)

	buf.WriteByte(byte(len(c.Symbol)))
	buf.WriteString(c.Symbol)

	buf.WriteByte(c.Decimal)

	supply := pixel.LumaFromBigInt(c.MaxSupply)
	buf.Write(supply[:])

	if c.IsFreezable {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func parseChroma(payload []byte) (*ChromaAnnouncement, error) {
	chroma, rest, err := chroma32(payload)
	if err != nil {
		return nil, err
	}

	name, rest, err := readLengthPrefixedString(rest, minNameSize, maxNameSize, ErrInvalidNameLength)
	if err != nil {
		return nil, err
	}

	symbol, rest, err := readLengthPrefixedString(rest, minSymbolSize, maxSymbolSize, ErrInvalidSymbolLength)
	if err != nil {
		return nil, err
	}

	if len(rest) < 1+pixel.LumaSize+1 {
		return nil, ErrTruncatedPayload
	}

	decimal := rest[0]
	rest = rest[1:]

	var supply pixel.Luma
	copy(supply[:], rest[:pixel.LumaSize])
	rest = rest[pixel.LumaSize:]

	isFreezable := rest[0] != 0

	return &ChromaAnnouncement{
		Chroma:      chroma,
		Name:        name,
		Symbol:      symbol,
		Decimal:     decimal,
		MaxSupply:   supply.BigInt(),
		IsFreezable: isFreezable,
	}, nil
}

func readLengthPrefixedString(payload []byte, min, max int, lengthErr error) (string, []byte, error) {
	if len(payload) < 1 {
		return "", nil, ErrTruncatedPayload
	}
	length := int(payload[0])
	if length < min || length > max {
		return "", nil, lengthErr
	}
	if len(payload) < 1+length {
		return "", nil, ErrTruncatedPayload
	}
	return string(payload[1 : 1+length]), payload[1+length:], nil
}
