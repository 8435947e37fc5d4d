package types

// WebhookProvider identifies the external system that delivered a webhook.
type WebhookProvider string

const (
	WebhookProviderCircle  WebhookProvider = "circle"
	WebhookProviderAlchemy WebhookProvider = "alchemy"
)

type Blockchain string

const (
	BlockchainEthereum  Blockchain = "ETH"
	BlockchainBase      Blockchain = "BASE"
	BlockchainArbitrum  Blockchain = "ARB"
	BlockchainPolygon   Blockchain = "MATIC"
	BlockchainAvalanche Blockchain = "AVAX"

	BlockchainEthereumSepolia Blockchain = "ETH-SEPOLIA"
	BlockchainBaseSepolia     Blockchain = "BASE-SEPOLIA"
	BlockchainArbitrumSepolia Blockchain = "ARB-SEPOLIA"
	BlockchainPolygonAmoy     Blockchain = "MATIC-AMOY"
	BlockchainAvalancheFuji   Blockchain = "AVAX-FUJI"
)

type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

type TokenType string

const (
	TokenTypeUSDC TokenType = "USDC"
	TokenTypeUSDT TokenType = "USDT"
)
