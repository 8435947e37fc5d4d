package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quidpay/reconciler/pkg/types"
)

// EntryPointV07 is the canonical ERC-4337 v0.7 EntryPoint, deployed at the
// same address on every supported chain.
const EntryPointV07 = "0x0000000071727De22E5E9d8BAf0edAc6f37da032"

// Circle's USDC paymaster is deployed at one address on mainnets and one on
// testnets, shared across chains.
const (
	paymasterMainnet = "0x0578cFB241215b77442a541325d6A4E6dFE700Ec"
	paymasterTestnet = "0x31Be08d880a3d11bD320d7B9ccFE70BEbD06A5e6"
)

var testnetMarkers = []string{"SEPOLIA", "FUJI", "AMOY"}

// IsTestnet reports whether a blockchain identifier names a test network,
// resolved by the naming convention over the chain identifier.
func IsTestnet(chain types.Blockchain) bool {
	upper := strings.ToUpper(string(chain))
	for _, marker := range testnetMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// Network maps a blockchain identifier onto its network class.
func Network(chain types.Blockchain) types.Network {
	if IsTestnet(chain) {
		return types.NetworkTestnet
	}
	return types.NetworkMainnet
}

// PaymasterAddress resolves the USDC paymaster contract for a chain.
func PaymasterAddress(chain types.Blockchain) common.Address {
	if IsTestnet(chain) {
		return common.HexToAddress(paymasterTestnet)
	}
	return common.HexToAddress(paymasterMainnet)
}

// EntryPointAddress returns the ERC-4337 v0.7 EntryPoint address.
func EntryPointAddress() common.Address {
	return common.HexToAddress(EntryPointV07)
}

// bundlerSlugs maps blockchain identifiers onto the per-chain path segment
// of the bundler endpoint.
var bundlerSlugs = map[types.Blockchain]string{
	types.BlockchainEthereum:        "ethereum",
	types.BlockchainBase:            "base",
	types.BlockchainArbitrum:        "arbitrum",
	types.BlockchainPolygon:         "polygon",
	types.BlockchainAvalanche:       "avalanche",
	types.BlockchainEthereumSepolia: "ethereum-sepolia",
	types.BlockchainBaseSepolia:     "base-sepolia",
	types.BlockchainArbitrumSepolia: "arbitrum-sepolia",
	types.BlockchainPolygonAmoy:     "polygon-amoy",
	types.BlockchainAvalancheFuji:   "avalanche-fuji",
}

// BundlerURL resolves the per-chain bundler endpoint from the configured
// base URL, e.g. https://api.pimlico.io/v2/<slug>/rpc?apikey=....
func BundlerURL(baseURL, apiKey string, chain types.Blockchain) (string, error) {
	slug, ok := bundlerSlugs[chain]
	if !ok {
		return "", fmt.Errorf("no bundler endpoint for chain %s", chain)
	}
	url := fmt.Sprintf("%s/%s/rpc", strings.TrimRight(baseURL, "/"), slug)
	if apiKey != "" {
		url = url + "?apikey=" + apiKey
	}
	return url, nil
}
