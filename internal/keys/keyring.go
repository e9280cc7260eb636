package keys

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"tripshare/internal/ledger"
)

// Entry is one account of a keyring file.
type Entry struct {
	Name     string `yaml:"name"`
	Mnemonic string `yaml:"mnemonic"`
	// Balance is funded at genesis.
	Balance uint64 `yaml:"balance"`
}

type File struct {
	Accounts []Entry `yaml:"accounts"`
}

// Keyring resolves operator-facing account names to signing accounts.
type Keyring struct {
	accounts  map[string]*Account
	byAddress map[ledger.Address]*Account
	genesis   map[ledger.Address]uint64
}

func NewKeyring() *Keyring {
	return &Keyring{
		accounts:  make(map[string]*Account),
		byAddress: make(map[ledger.Address]*Account),
		genesis:   make(map[ledger.Address]uint64),
	}
}

// LoadKeyring reads a YAML keyring file.
func LoadKeyring(path string) (*Keyring, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring %s: %w", path, err)
	}
	return ParseKeyring(data)
}

func ParseKeyring(data []byte) (*Keyring, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse keyring: %w", err)
	}
	kr := NewKeyring()
	for i, e := range f.Accounts {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("keyring account %d: name is required", i)
		}
		acct, err := FromMnemonic(name, e.Mnemonic)
		if err != nil {
			return nil, fmt.Errorf("keyring account %q: %w", name, err)
		}
		if err := kr.Add(acct, e.Balance); err != nil {
			return nil, err
		}
	}
	return kr, nil
}

// Add registers acct under its name with a genesis balance.
func (k *Keyring) Add(acct *Account, balance uint64) error {
	if _, ok := k.accounts[acct.Name]; ok {
		return fmt.Errorf("keyring account %q defined twice", acct.Name)
	}
	if _, ok := k.byAddress[acct.Address()]; ok {
		return fmt.Errorf("keyring account %q duplicates the mnemonic of another account", acct.Name)
	}
	k.accounts[acct.Name] = acct
	k.byAddress[acct.Address()] = acct
	if balance > 0 {
		k.genesis[acct.Address()] = balance
	}
	return nil
}

// Account looks up by name first, then by address text.
func (k *Keyring) Account(ref string) (*Account, bool) {
	if a, ok := k.accounts[ref]; ok {
		return a, true
	}
	addr, err := ledger.ParseAddress(ref)
	if err != nil {
		return nil, false
	}
	a, ok := k.byAddress[addr]
	return a, ok
}

func (k *Keyring) Names() []string {
	names := make([]string, 0, len(k.accounts))
	for n := range k.accounts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Genesis returns the balances to fund on an empty ledger.
func (k *Keyring) Genesis() map[ledger.Address]uint64 {
	out := make(map[ledger.Address]uint64, len(k.genesis))
	for a, b := range k.genesis {
		out[a] = b
	}
	return out
}
