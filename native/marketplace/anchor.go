package marketplace

import (
	"encoding/binary"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// ComputeAnchor derives the terms anchor for an offer from its current
// economic terms. Buyers compute the anchor off-chain when forming intent and
// supply it to the safe buy paths; a mismatch means the terms drifted between
// quote and execution. The anchor is an assertion check, not a price lock.
func ComputeAnchor(tokenID uint64, unitPrice *big.Int) [32]byte {
	var tokenBytes [8]byte
	binary.BigEndian.PutUint64(tokenBytes[:], tokenID)
	price, _ := uint256.FromBig(cloneBigInt(unitPrice))
	priceBytes := price.Bytes32()
	return ethcrypto.Keccak256Hash(tokenBytes[:], priceBytes[:])
}

// OfferAnchor computes the anchor for the offer's stored terms.
func OfferAnchor(o *Offer) [32]byte {
	if o == nil {
		return [32]byte{}
	}
	return ComputeAnchor(o.TokenID, o.UnitPrice)
}
