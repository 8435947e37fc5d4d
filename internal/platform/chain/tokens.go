package chain

import (
	"strings"

	"github.com/quidpay/reconciler/pkg/types"
)

type tokenKey struct {
	chain   types.Blockchain
	network types.Network
	token   types.TokenType
}

// tokenContracts holds the canonical stablecoin contract per chain+network.
// Addresses are stored lowercase; ResolveToken normalizes its input the same
// way, so lookups are case-insensitive.
var tokenContracts = map[tokenKey]string{
	{types.BlockchainEthereum, types.NetworkMainnet, types.TokenTypeUSDC}:        "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
	{types.BlockchainEthereum, types.NetworkMainnet, types.TokenTypeUSDT}:        "0xdac17f958d2ee523a2206206994597c13d831ec7",
	{types.BlockchainBase, types.NetworkMainnet, types.TokenTypeUSDC}:            "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913",
	{types.BlockchainArbitrum, types.NetworkMainnet, types.TokenTypeUSDC}:        "0xaf88d065e77c8cc2239327c5edb3a432268e5831",
	{types.BlockchainArbitrum, types.NetworkMainnet, types.TokenTypeUSDT}:        "0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9",
	{types.BlockchainPolygon, types.NetworkMainnet, types.TokenTypeUSDC}:         "0x3c499c542cef5e3811e1192ce70d8cc03d5c3359",
	{types.BlockchainPolygon, types.NetworkMainnet, types.TokenTypeUSDT}:         "0xc2132d05d31c914a87c6611c10748aeb04b58e8f",
	{types.BlockchainAvalanche, types.NetworkMainnet, types.TokenTypeUSDC}:       "0xb97ef9ef8734c71904d8002f8b6bc66dd9c48a6e",
	{types.BlockchainAvalanche, types.NetworkMainnet, types.TokenTypeUSDT}:       "0x9702230a8ea53601f5cd2dc00fdbc13d4df4a8c7",
	{types.BlockchainEthereumSepolia, types.NetworkTestnet, types.TokenTypeUSDC}: "0x1c7d4b196cb0c7b01d743fbc6116a902379c7238",
	{types.BlockchainBaseSepolia, types.NetworkTestnet, types.TokenTypeUSDC}:     "0x036cbd53842c5426634e7929541ec2318f3dcf7e",
	{types.BlockchainArbitrumSepolia, types.NetworkTestnet, types.TokenTypeUSDC}: "0x75faf114eafb1bdbe2f0316df893fd58ce46aa4d",
	{types.BlockchainPolygonAmoy, types.NetworkTestnet, types.TokenTypeUSDC}:     "0x41e94eb019c0762f9bfcf9fb1e58725bfb0e7582",
	{types.BlockchainAvalancheFuji, types.NetworkTestnet, types.TokenTypeUSDC}:   "0x5425890298aed601595a70ab815c96711a31bc65",
}

// ResolveToken maps a token contract address onto the stablecoin it
// represents for the given chain and network. The second return is false
// when the contract is neither a known USDC nor USDT deployment.
func ResolveToken(chain types.Blockchain, network types.Network, contract string) (types.TokenType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(contract))
	for _, token := range []types.TokenType{types.TokenTypeUSDC, types.TokenTypeUSDT} {
		if addr, ok := tokenContracts[tokenKey{chain, network, token}]; ok && addr == normalized {
			return token, true
		}
	}
	return "", false
}

// TokenContract returns the contract address for a stablecoin deployment,
// or "" when the token is not deployed on that chain+network.
func TokenContract(chain types.Blockchain, network types.Network, token types.TokenType) string {
	return tokenContracts[tokenKey{chain, network, token}]
}
