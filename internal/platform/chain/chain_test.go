package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quidpay/reconciler/pkg/types"
)

func TestFormatUSDC(t *testing.T) {
	require.Equal(t, "3.500000", FormatUSDC(big.NewInt(3_500_000)))
	require.Equal(t, "0.000001", FormatUSDC(big.NewInt(1)))
	require.Equal(t, "0.000000", FormatUSDC(big.NewInt(0)))
	require.Equal(t, "1250.000000", FormatUSDC(big.NewInt(1_250_000_000)))
	require.Equal(t, "-0.500000", FormatUSDC(big.NewInt(-500_000)))
	require.Equal(t, "-1.500000", FormatUSDC(big.NewInt(-1_500_000)))
	require.Equal(t, "0.000000", FormatUSDC(nil))
}

func TestFormatUnits(t *testing.T) {
	require.Equal(t, "1.000000000000000000", FormatUnits(big.NewInt(1_000_000_000_000_000_000), 18))
	require.Equal(t, "42", FormatUnits(big.NewInt(42), 0))
}

func TestParseUSDC(t *testing.T) {
	cases := map[string]int64{
		"3.5":      3_500_000,
		"3.500000": 3_500_000,
		"5.00":     5_000_000,
		"0.000001": 1,
		"100":      100_000_000,
		"-1.25":    -1_250_000,
		".5":       500_000,
	}
	for input, expected := range cases {
		raw, err := ParseUSDC(input)
		require.NoError(t, err, input)
		require.Equal(t, expected, raw.Int64(), input)
	}

	for _, input := range []string{"", "abc", "1.2345678", "1.2.3"} {
		_, err := ParseUSDC(input)
		require.Error(t, err, input)
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	raw, err := ParseUSDC(FormatUSDC(big.NewInt(3_141_592)))
	require.NoError(t, err)
	require.EqualValues(t, 3_141_592, raw.Int64())
}

func TestIsTestnet(t *testing.T) {
	require.False(t, IsTestnet(types.BlockchainBase))
	require.False(t, IsTestnet(types.BlockchainEthereum))
	require.True(t, IsTestnet(types.BlockchainBaseSepolia))
	require.True(t, IsTestnet(types.BlockchainAvalancheFuji))
	require.True(t, IsTestnet(types.BlockchainPolygonAmoy))
}

func TestPaymasterAddress(t *testing.T) {
	require.Equal(t, paymasterMainnet, PaymasterAddress(types.BlockchainBase).Hex())
	require.Equal(t, paymasterTestnet, PaymasterAddress(types.BlockchainBaseSepolia).Hex())
}

func TestResolveToken(t *testing.T) {
	token, ok := ResolveToken(types.BlockchainBase, types.NetworkMainnet, "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913")
	require.True(t, ok)
	require.Equal(t, types.TokenTypeUSDC, token)

	// Resolution is case-insensitive on the contract address.
	token, ok = ResolveToken(types.BlockchainBase, types.NetworkMainnet, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	require.True(t, ok)
	require.Equal(t, types.TokenTypeUSDC, token)

	_, ok = ResolveToken(types.BlockchainBase, types.NetworkMainnet, "0xdeadbeef00000000000000000000000000000000")
	require.False(t, ok)

	// A mainnet contract does not resolve on the testnet of the same chain.
	_, ok = ResolveToken(types.BlockchainBaseSepolia, types.NetworkTestnet, "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913")
	require.False(t, ok)
}

func TestBundlerURL(t *testing.T) {
	url, err := BundlerURL("https://api.pimlico.io/v2", "pim_key", types.BlockchainBaseSepolia)
	require.NoError(t, err)
	require.Equal(t, "https://api.pimlico.io/v2/base-sepolia/rpc?apikey=pim_key", url)

	url, err = BundlerURL("https://api.pimlico.io/v2/", "", types.BlockchainEthereum)
	require.NoError(t, err)
	require.Equal(t, "https://api.pimlico.io/v2/ethereum/rpc", url)

	_, err = BundlerURL("https://api.pimlico.io/v2", "pim_key", types.Blockchain("SOL"))
	require.Error(t, err)
}

func TestFromAlchemyNetwork(t *testing.T) {
	chain, network, ok := FromAlchemyNetwork("BASE_MAINNET")
	require.True(t, ok)
	require.Equal(t, types.BlockchainBase, chain)
	require.Equal(t, types.NetworkMainnet, network)

	chain, network, ok = FromAlchemyNetwork(" base_sepolia ")
	require.True(t, ok)
	require.Equal(t, types.BlockchainBaseSepolia, chain)
	require.Equal(t, types.NetworkTestnet, network)

	_, _, ok = FromAlchemyNetwork("SOLANA_MAINNET")
	require.False(t, ok)
}
