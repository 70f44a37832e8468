package validator

import (
	"math/big"
	"strings"
)

// DefaultStake is the self-delegation used when none is given (1.5 PC).
const DefaultStake = "1500000000000000000"

// Wallet describes a key in the node keyring.
type Wallet struct {
	Name       string `json:"name" yaml:"name"`
	Address    string `json:"address" yaml:"address"`
	EVMAddress string `json:"evm_address,omitempty" yaml:"evm_address,omitempty"`
	// Mnemonic is only set for freshly created wallets.
	Mnemonic string `json:"mnemonic,omitempty" yaml:"mnemonic,omitempty"`
}

// Status is the on-chain state of one validator.
type Status struct {
	IsValidator     bool   `json:"is_validator" yaml:"is_validator"`
	OperatorAddress string `json:"operator_address,omitempty" yaml:"operator_address,omitempty"`
	Moniker         string `json:"moniker,omitempty" yaml:"moniker,omitempty"`
	Status          string `json:"status,omitempty" yaml:"status,omitempty"` // Bonded, Unbonding, Unbonded
	Jailed          bool   `json:"jailed" yaml:"jailed"`
	Tokens          string `json:"tokens,omitempty" yaml:"tokens,omitempty"` // raw amount
	Commission      string `json:"commission,omitempty" yaml:"commission,omitempty"`
}

// FaucetInfo tells the operator where to fund a wallet.
type FaucetInfo struct {
	URL        string `json:"url" yaml:"url"`
	Address    string `json:"address" yaml:"address"`
	EVMAddress string `json:"evm_address,omitempty" yaml:"evm_address,omitempty"`
}

// HumanizeBondStatus maps BOND_STATUS_* to a short label.
func HumanizeBondStatus(s string) string {
	switch strings.ToUpper(s) {
	case "BOND_STATUS_BONDED", "BONDED", "3":
		return "Bonded"
	case "BOND_STATUS_UNBONDING", "UNBONDING", "2":
		return "Unbonding"
	case "BOND_STATUS_UNBONDED", "UNBONDED", "1":
		return "Unbonded"
	case "":
		return "Unknown"
	}
	return s
}

// FormatTokens renders an 18-decimal base amount as whole units, e.g. "1.5".
func FormatTokens(raw string) string {
	n, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return raw
	}
	r := new(big.Rat).SetFrac(n, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	s := strings.TrimRight(strings.TrimRight(r.FloatString(6), "0"), ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

// enough reports whether balance >= amount. Non-numeric input is never enough.
func enough(balance, amount string) bool {
	b, ok1 := new(big.Int).SetString(strings.TrimSpace(balance), 10)
	a, ok2 := new(big.Int).SetString(strings.TrimSpace(amount), 10)
	return ok1 && ok2 && b.Cmp(a) >= 0
}
