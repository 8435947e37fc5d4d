package paymaster

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// UserOperationSponsored is emitted by the paymaster contract once it has
// charged the sender's USDC for a sponsored operation.
const sponsoredEventABI = `[{"anonymous":false,"inputs":[
{"indexed":true,"internalType":"address","name":"token","type":"address"},
{"indexed":true,"internalType":"address","name":"sender","type":"address"},
{"indexed":false,"internalType":"bytes32","name":"userOpHash","type":"bytes32"},
{"indexed":false,"internalType":"uint256","name":"nativeTokenPrice","type":"uint256"},
{"indexed":false,"internalType":"uint256","name":"actualTokenNeeded","type":"uint256"},
{"indexed":false,"internalType":"uint256","name":"feeTokenAmount","type":"uint256"}],
"name":"UserOperationSponsored","type":"event"}]`

var (
	paymasterABI abi.ABI

	// SponsoredEventSignature is the topic0 of UserOperationSponsored.
	SponsoredEventSignature = gethcrypto.Keccak256Hash(
		[]byte("UserOperationSponsored(address,address,bytes32,uint256,uint256,uint256)"))
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(sponsoredEventABI))
	if err != nil {
		panic(fmt.Sprintf("paymaster: parse event abi: %v", err))
	}
	paymasterABI = parsed
}

// SponsoredEvent is one decoded UserOperationSponsored log.
type SponsoredEvent struct {
	Token             common.Address
	Sender            common.Address
	UserOpHash        common.Hash
	NativeTokenPrice  *big.Int
	ActualTokenNeeded *big.Int
	FeeTokenAmount    *big.Int
	TransactionHash   common.Hash
	LogIndex          uint
	BlockNumber       uint64
}

// DecodeSponsoredLog unpacks a raw log. Logs with a different topic0 are
// not an error; callers filter by signature first.
func DecodeSponsoredLog(log *gethtypes.Log) (*SponsoredEvent, error) {
	if log == nil || len(log.Topics) < 3 {
		return nil, fmt.Errorf("paymaster: malformed sponsorship log")
	}
	if log.Topics[0] != SponsoredEventSignature {
		return nil, fmt.Errorf("paymaster: unexpected event signature %s", log.Topics[0].Hex())
	}
	values, err := paymasterABI.Events["UserOperationSponsored"].Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("paymaster: unpack sponsorship log: %w", err)
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("paymaster: unexpected field count %d", len(values))
	}
	hashBytes, ok := values[0].([32]byte)
	if !ok {
		return nil, fmt.Errorf("paymaster: userOpHash has unexpected type %T", values[0])
	}
	ev := &SponsoredEvent{
		Token:           common.BytesToAddress(log.Topics[1].Bytes()),
		Sender:          common.BytesToAddress(log.Topics[2].Bytes()),
		UserOpHash:      common.BytesToHash(hashBytes[:]),
		TransactionHash: log.TxHash,
		LogIndex:        log.Index,
		BlockNumber:     log.BlockNumber,
	}
	for i, dst := range []**big.Int{&ev.NativeTokenPrice, &ev.ActualTokenNeeded, &ev.FeeTokenAmount} {
		v, ok := values[i+1].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("paymaster: field %d has unexpected type %T", i+1, values[i+1])
		}
		*dst = v
	}
	return ev, nil
}
