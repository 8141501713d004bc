package metadata

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestIPFSGatewayResolve(t *testing.T) {
	g := NewIPFSGateway("")

	cases := []struct {
		hash string
		want string
	}{
		{
			"0x4f0b018a3b003b7c99f97427f410cafe5707ba18d28b13cd8bfa59e08e110380",
			"https://ipfs.io/ipfs/QmTfCejgo2wTwqnDJs8Lu1pCNeCrCDuE4GAwkna93zdd7d",
		},
		{
			"0x5084d4dfd5da02f60cc01eab0b41cd28af321597c469881d612df4adaa2b3815",
			"https://ipfs.io/ipfs/QmTkxoV1ZciKyFciWDueJDXv8bWRfD5R1YmmeMF6QojL6x",
		},
		{
			"0x55b38a82d49f814f34409e141d237aef5aee996364cbba94bae0f1abdad85173",
			"https://ipfs.io/ipfs/QmU7C9hnDYnThfpCvX28bdzZpX8Dtyt8m7J6cUNfmBoN6E",
		},
	}
	for _, tc := range cases {
		uri, err := g.Resolve(common.HexToHash(tc.hash))
		require.NoError(t, err)
		require.Equal(t, tc.want, uri)
	}
}

func TestIPFSGatewayCustomPrefix(t *testing.T) {
	g := NewIPFSGateway("ipfs://")
	uri, err := g.Resolve(common.HexToHash("0x4f0b018a3b003b7c99f97427f410cafe5707ba18d28b13cd8bfa59e08e110380"))
	require.NoError(t, err)
	require.Equal(t, "ipfs://QmTfCejgo2wTwqnDJs8Lu1pCNeCrCDuE4GAwkna93zdd7d", uri)
}
