package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Keccak256 hashes of the canonical EIP-712 type strings.
var (
	authDomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId)"),
	)
	exchangeDomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
	)
	clobAuthTypeHash = ethcrypto.Keccak256(
		[]byte("ClobAuth(address address,uint256 timestamp,uint256 nonce,string message)"),
	)
	orderTypeHash = ethcrypto.Keccak256(
		[]byte("Order(uint256 salt,address maker,address signer,address taker,uint256 tokenId,uint256 makerAmount,uint256 takerAmount,uint256 expiration,uint256 nonce,uint256 feeRateBps,uint8 side,uint8 signatureType)"),
	)
)

// clobAuthMessage is the fixed attestation string the CLOB expects inside a
// ClobAuth signature.
const clobAuthMessage = "This message attests that I control the given wallet"

// SignableOrder carries the twelve EIP-712 fields of a CLOB order. Large
// numbers travel as decimal strings so nothing is lost crossing JSON.
type SignableOrder struct {
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          int    `json:"side"`          // 0 BUY, 1 SELL
	SignatureType int    `json:"signatureType"` // 0 EOA
}

// Signer signs CLOB auth messages and orders with a secp256k1 key. The two
// signing surfaces use different EIP-712 domains: auth has no verifying
// contract, orders bind to the exchange contract address.
type Signer struct {
	key        *ecdsa.PrivateKey
	address    common.Address
	authDomain []byte
	exchange   []byte
}

// NewSigner derives a signer from a hex private key. chainID is 137 for
// Polygon mainnet; exchangeAddr is the CTF Exchange contract orders settle
// through.
func NewSigner(privateKeyHex string, chainID int64, exchangeAddr string) (*Signer, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto: parse private key: %w", err)
	}

	chain := uint256Bytes(big.NewInt(chainID))
	s := &Signer{
		key:     key,
		address: ethcrypto.PubkeyToAddress(key.PublicKey),
	}
	s.authDomain = ethcrypto.Keccak256(cat(
		authDomainTypeHash,
		ethcrypto.Keccak256([]byte("ClobAuthDomain")),
		ethcrypto.Keccak256([]byte("1")),
		chain,
	))
	s.exchange = ethcrypto.Keccak256(cat(
		exchangeDomainTypeHash,
		ethcrypto.Keccak256([]byte("Polymarket CTF Exchange")),
		ethcrypto.Keccak256([]byte("1")),
		chain,
		common.LeftPadBytes(common.HexToAddress(exchangeAddr).Bytes(), 32),
	))
	return s, nil
}

// Address returns the wallet address derived from the signing key.
func (s *Signer) Address() common.Address { return s.address }

// SignAuth signs the ClobAuth message used to derive API credentials.
func (s *Signer) SignAuth(timestamp, nonce int64) (string, error) {
	structHash := ethcrypto.Keccak256(cat(
		clobAuthTypeHash,
		common.LeftPadBytes(s.address.Bytes(), 32),
		uint256Bytes(big.NewInt(timestamp)),
		uint256Bytes(big.NewInt(nonce)),
		ethcrypto.Keccak256([]byte(clobAuthMessage)),
	))
	return s.sign(s.authDomain, structHash)
}

// SignOrder signs an order against the exchange domain.
func (s *Signer) SignOrder(order SignableOrder) (string, error) {
	structHash, err := orderStructHash(order)
	if err != nil {
		return "", err
	}
	return s.sign(s.exchange, structHash)
}

// sign produces the hex 65-byte r||s||v signature over the EIP-712 digest
// keccak256("\x19\x01" || domain || structHash).
func (s *Signer) sign(domain, structHash []byte) (string, error) {
	digest := ethcrypto.Keccak256(cat([]byte{0x19, 0x01}, domain, structHash))
	sig, err := ethcrypto.Sign(digest, s.key)
	if err != nil {
		return "", fmt.Errorf("crypto: sign digest: %w", err)
	}
	// Recovery id 0/1 becomes the Ethereum-conventional 27/28.
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + hex.EncodeToString(sig), nil
}

func orderStructHash(o SignableOrder) ([]byte, error) {
	nums := make([][]byte, 0, 7)
	for _, field := range []struct {
		name, value string
	}{
		{"salt", o.Salt},
		{"tokenId", o.TokenID},
		{"makerAmount", o.MakerAmount},
		{"takerAmount", o.TakerAmount},
		{"expiration", o.Expiration},
		{"nonce", o.Nonce},
		{"feeRateBps", o.FeeRateBps},
	} {
		n, ok := new(big.Int).SetString(field.value, 10)
		if !ok {
			return nil, fmt.Errorf("crypto: order %s %q is not a decimal integer", field.name, field.value)
		}
		nums = append(nums, uint256Bytes(n))
	}

	return ethcrypto.Keccak256(cat(
		orderTypeHash,
		nums[0], // salt
		common.LeftPadBytes(common.HexToAddress(o.Maker).Bytes(), 32),
		common.LeftPadBytes(common.HexToAddress(o.Signer).Bytes(), 32),
		common.LeftPadBytes(common.HexToAddress(o.Taker).Bytes(), 32),
		nums[1], nums[2], nums[3], nums[4], nums[5], nums[6],
		uint256Bytes(big.NewInt(int64(o.Side))),
		uint256Bytes(big.NewInt(int64(o.SignatureType))),
	)), nil
}

// uint256Bytes is the 32-byte big-endian ABI encoding of n.
func uint256Bytes(n *big.Int) []byte {
	return common.LeftPadBytes(n.Bytes(), 32)
}

func cat(parts ...[]byte) []byte {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
