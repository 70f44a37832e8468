// Package validator manages wallets and validator registration by running the
// node CLI inside the container.
package validator

import "context"

// Service handles key ops, balances, validator detection, and registration flow.
type Service interface {
	CreateWallet(ctx context.Context, name string) (Wallet, error)
	ImportMnemonic(ctx context.Context, name, mnemonic string) (Wallet, error)
	ImportPrivateKey(ctx context.Context, name, hexKey string) (Wallet, error)
	EnsureKey(ctx context.Context, name string) (string, error) // returns address

	Address(ctx context.Context, name string) (string, error)
	ValoperAddress(ctx context.Context, name string) (string, error)
	EVMAddress(ctx context.Context, addr string) (string, error)

	Balance(ctx context.Context, addr string) (string, error) // amount in the staking denom
	IsValidator(ctx context.Context, valoper string) (bool, error)
	Status(ctx context.Context, valoper string) (Status, error)
	Register(ctx context.Context, args RegisterArgs) (string, error) // returns tx hash
	Edit(ctx context.Context, args EditArgs) (string, error)         // returns tx hash
	Faucet(ctx context.Context, name string) (FaucetInfo, error)
}

type RegisterArgs struct {
	Moniker           string
	CommissionRate    string
	MinSelfDelegation string
	Amount            string // staking denom units; DefaultStake when empty
	KeyName           string
	Details           string
}

type EditArgs struct {
	KeyName    string
	NewMoniker string
}
