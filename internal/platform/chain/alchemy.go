package chain

import (
	"strings"

	"github.com/quidpay/reconciler/pkg/types"
)

// alchemyNetworks maps Alchemy's network identifiers onto the platform's
// blockchain identifiers.
var alchemyNetworks = map[string]types.Blockchain{
	"ETH_MAINNET":   types.BlockchainEthereum,
	"BASE_MAINNET":  types.BlockchainBase,
	"ARB_MAINNET":   types.BlockchainArbitrum,
	"MATIC_MAINNET": types.BlockchainPolygon,
	"AVAX_MAINNET":  types.BlockchainAvalanche,
	"ETH_SEPOLIA":   types.BlockchainEthereumSepolia,
	"BASE_SEPOLIA":  types.BlockchainBaseSepolia,
	"ARB_SEPOLIA":   types.BlockchainArbitrumSepolia,
	"MATIC_AMOY":    types.BlockchainPolygonAmoy,
	"AVAX_FUJI":     types.BlockchainAvalancheFuji,
}

// FromAlchemyNetwork resolves an Alchemy network string such as
// "BASE_MAINNET" to the platform blockchain and network class.
func FromAlchemyNetwork(network string) (types.Blockchain, types.Network, bool) {
	chain, ok := alchemyNetworks[strings.ToUpper(strings.TrimSpace(network))]
	if !ok {
		return "", "", false
	}
	return chain, Network(chain), true
}
