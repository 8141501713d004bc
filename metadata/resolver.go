package metadata

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

// DefaultGatewayPrefix is the public IPFS gateway used when no prefix is
// configured.
const DefaultGatewayPrefix = "https://ipfs.io/ipfs/"

// Resolver turns a stored content hash into a retrievable URI.
type Resolver interface {
	Resolve(hash common.Hash) (string, error)
}

// IPFSGateway renders a 32-byte sha2-256 digest as a CIDv0 and prefixes it
// with an HTTP gateway URL.
type IPFSGateway struct {
	prefix string
}

// NewIPFSGateway constructs a gateway resolver. An empty prefix falls back to
// the default public gateway.
func NewIPFSGateway(prefix string) *IPFSGateway {
	if prefix == "" {
		prefix = DefaultGatewayPrefix
	}
	return &IPFSGateway{prefix: prefix}
}

// Resolve encodes the hash as a base58btc CIDv0 (sha2-256 multihash) under
// the gateway prefix.
func (g *IPFSGateway) Resolve(hash common.Hash) (string, error) {
	multihash := make([]byte, 0, 2+common.HashLength)
	multihash = append(multihash, 0x12, 0x20)
	multihash = append(multihash, hash.Bytes()...)
	return g.prefix + base58.Encode(multihash), nil
}
