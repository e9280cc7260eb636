package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"io"
	"strings"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"

	"tripshare/internal/ledger"
)

const hkdfInfoSigning = "tripshare/account/signing/v1"

var (
	ErrMnemonicRequired = errors.New("mnemonic is required")
	ErrInvalidMnemonic  = errors.New("invalid mnemonic")
)

// Account is an ed25519 keypair derived from a BIP-39 mnemonic. It signs ledger operations.
type Account struct {
	Name    string
	private ed25519.PrivateKey
	address ledger.Address
}

// FromMnemonic derives the account for mnemonic. The same phrase always yields the same address.
func FromMnemonic(name, mnemonic string) (*Account, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if mnemonic == "" {
		return nil, ErrMnemonicRequired
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed, err := hkdfExpand(bip39.NewSeed(mnemonic, ""), hkdfInfoSigning, ed25519.SeedSize)
	if err != nil {
		return nil, err
	}
	priv := ed25519.NewKeyFromSeed(seed)

	a := &Account{Name: name, private: priv}
	copy(a.address[:], priv.Public().(ed25519.PublicKey))
	return a, nil
}

// Generate creates a fresh mnemonic and its account.
func Generate(name string) (mnemonic string, account *Account, err error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", nil, err
	}
	mnemonic, err = bip39.NewMnemonic(entropy)
	if err != nil {
		return "", nil, err
	}
	account, err = FromMnemonic(name, mnemonic)
	if err != nil {
		return "", nil, err
	}
	return mnemonic, account, nil
}

func (a *Account) Address() ledger.Address {
	return a.address
}

func (a *Account) Sign(message []byte) []byte {
	return ed25519.Sign(a.private, message)
}

func hkdfExpand(seed []byte, info string, outLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, seed, nil, []byte(info))
	out := make([]byte, outLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}
