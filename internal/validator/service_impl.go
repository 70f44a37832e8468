package validator

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cast"

	"github.com/pushchain/push-node-docker/internal/container"
	"github.com/pushchain/push-node-docker/internal/errors"
	"github.com/pushchain/push-node-docker/internal/logging"
	"github.com/pushchain/push-node-docker/internal/monitor"
	"github.com/pushchain/push-node-docker/internal/node"
)

// validatorFile is where the create-validator payload is written in the container.
const validatorFile = "/tmp/validator.json"

type Options struct {
	HomeDir   string
	ChainID   string
	Keyring   string
	Denom     string // e.g., upc
	FaucetURL string
	// TxTimeout bounds transaction submission; 60s when zero.
	TxTimeout time.Duration
	Logger    zerolog.Logger
}

func NewWith(runner node.Runner, opts Options) Service {
	if opts.Keyring == "" {
		opts.Keyring = "test"
	}
	if opts.Denom == "" {
		opts.Denom = "upc"
	}
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = 60 * time.Second
	}
	return &svc{
		run:    runner,
		opts:   opts,
		logger: logging.Component(opts.Logger, "validator"),
	}
}

type svc struct {
	run    node.Runner
	opts   Options
	logger zerolog.Logger
}

func (s *svc) keyringFlags() []string {
	return []string{"--keyring-backend", s.opts.Keyring, "--home", s.opts.HomeDir}
}

func (s *svc) txFlags(from string) []string {
	return []string{
		"--from", from,
		"--chain-id", s.opts.ChainID,
		"--keyring-backend", s.opts.Keyring,
		"--home", s.opts.HomeDir,
		"--gas=auto", "--gas-adjustment=1.3", fmt.Sprintf("--gas-prices=1000000000%s", s.opts.Denom),
		"--yes",
	}
}

// node runs the node binary and fails on a non-zero exit.
func (s *svc) node(ctx context.Context, op, stdin string, args ...string) (container.Output, error) {
	out, err := s.run.NodeOutput(ctx, stdin, args...)
	if err != nil {
		return out, errors.WrapCode(err, errors.CodeCommand, op, "failed to run node command")
	}
	if out.ExitCode != 0 {
		combined := out.Stderr + "\n" + out.Stdout
		msg := extractErrorLine(combined)
		if msg == "" {
			msg = lastLine(combined)
		}
		return out, errors.Newf(errors.CodeCommand, op, "%s failed: %s", strings.Join(args[:min(2, len(args))], " "), msg).
			WithContext("exit_code", out.ExitCode)
	}
	return out, nil
}

func (s *svc) CreateWallet(ctx context.Context, name string) (Wallet, error) {
	if err := requireName(name, "validator.create_wallet"); err != nil {
		return Wallet{}, err
	}
	args := append([]string{"keys", "add", name, "--algo", "eth_secp256k1", "--output", "json"}, s.keyringFlags()...)
	out, err := s.node(ctx, "validator.create_wallet", "", args...)
	if err != nil {
		return Wallet{}, err
	}
	w, err := parseKeyOutput(node.Combined(out))
	if err != nil {
		return Wallet{}, err
	}
	w.Name = name
	s.withEVM(ctx, &w)
	return w, nil
}

func (s *svc) ImportMnemonic(ctx context.Context, name, mnemonic string) (Wallet, error) {
	if err := requireName(name, "validator.import_mnemonic"); err != nil {
		return Wallet{}, err
	}
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if mnemonic == "" {
		return Wallet{}, errors.New(errors.CodeValidation, "validator.import_mnemonic", "mnemonic must not be empty")
	}
	args := append([]string{"keys", "add", name, "--recover", "--algo", "eth_secp256k1", "--output", "json"}, s.keyringFlags()...)
	out, err := s.node(ctx, "validator.import_mnemonic", mnemonic+"\n", args...)
	if err != nil {
		return Wallet{}, err
	}
	w, err := parseKeyOutput(node.Combined(out))
	if err != nil {
		return Wallet{}, err
	}
	w.Name = name
	w.Mnemonic = ""
	s.withEVM(ctx, &w)
	return w, nil
}

func (s *svc) ImportPrivateKey(ctx context.Context, name, hexKey string) (Wallet, error) {
	if err := requireName(name, "validator.import_private_key"); err != nil {
		return Wallet{}, err
	}
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return Wallet{}, errors.New(errors.CodeValidation, "validator.import_private_key", "private key must not be empty")
	}
	if _, err := hex.DecodeString(hexKey); err != nil || len(hexKey) != 64 {
		return Wallet{}, errors.New(errors.CodeValidation, "validator.import_private_key", "private key must be 32 bytes of hex")
	}
	args := append([]string{"keys", "unsafe-import-eth-key", name, hexKey}, s.keyringFlags()...)
	if _, err := s.node(ctx, "validator.import_private_key", "", args...); err != nil {
		return Wallet{}, err
	}
	addr, err := s.Address(ctx, name)
	if err != nil {
		return Wallet{}, err
	}
	w := Wallet{Name: name, Address: addr}
	s.withEVM(ctx, &w)
	return w, nil
}

func (s *svc) EnsureKey(ctx context.Context, name string) (string, error) {
	if addr, err := s.Address(ctx, name); err == nil {
		return addr, nil
	}
	s.logger.Info().Str("key", name).Msg("key not found, creating")
	w, err := s.CreateWallet(ctx, name)
	if err != nil {
		return "", err
	}
	return w.Address, nil
}

func (s *svc) Address(ctx context.Context, name string) (string, error) {
	if err := requireName(name, "validator.address"); err != nil {
		return "", err
	}
	out, err := s.node(ctx, "validator.address", "", append([]string{"keys", "show", name, "-a"}, s.keyringFlags()...)...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Stdout), nil
}

func (s *svc) ValoperAddress(ctx context.Context, name string) (string, error) {
	if err := requireName(name, "validator.valoper_address"); err != nil {
		return "", err
	}
	out, err := s.node(ctx, "validator.valoper_address", "", append([]string{"keys", "show", name, "--bech", "val", "-a"}, s.keyringFlags()...)...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Stdout), nil
}

func (s *svc) EVMAddress(ctx context.Context, addr string) (string, error) {
	out, err := s.node(ctx, "validator.evm_address", "", "debug", "addr", addr)
	if err != nil {
		return "", err
	}
	return parseDebugAddr(node.Combined(out))
}

func (s *svc) withEVM(ctx context.Context, w *Wallet) {
	if w.Address == "" {
		return
	}
	evm, err := s.EVMAddress(ctx, w.Address)
	if err != nil {
		s.logger.Debug().Err(err).Msg("evm address lookup failed")
		return
	}
	w.EVMAddress = evm
}

func (s *svc) Balance(ctx context.Context, addr string) (string, error) {
	out, err := s.node(ctx, "validator.balance", "", "query", "bank", "balances", addr, "-o", "json")
	if err != nil {
		return "0", err
	}
	var payload struct {
		Balances []struct{ Denom, Amount string } `json:"balances"`
	}
	if err := json.Unmarshal([]byte(node.Combined(out)), &payload); err != nil {
		return "0", errors.WrapCode(err, errors.CodeCommand, "validator.balance", "failed to parse balance output")
	}
	for _, c := range payload.Balances {
		if c.Denom == s.opts.Denom {
			return c.Amount, nil
		}
	}
	return "0", nil
}

func (s *svc) IsValidator(ctx context.Context, valoper string) (bool, error) {
	st, err := s.Status(ctx, valoper)
	if err != nil {
		return false, err
	}
	return st.IsValidator, nil
}

func (s *svc) Status(ctx context.Context, valoper string) (Status, error) {
	out, err := s.run.NodeOutput(ctx, "", "query", "staking", "validator", valoper, "-o", "json")
	if err != nil {
		return Status{}, errors.WrapCode(err, errors.CodeCommand, "validator.status", "failed to run node command")
	}
	if out.ExitCode != 0 {
		combined := strings.ToLower(out.Stderr + out.Stdout)
		if strings.Contains(combined, "not found") || strings.Contains(combined, "does not exist") {
			return Status{OperatorAddress: valoper}, nil
		}
		return Status{}, errors.Newf(errors.CodeCommand, "validator.status", "query staking validator failed: %s",
			lastLine(out.Stderr+"\n"+out.Stdout))
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(node.Combined(out)), &doc); err != nil {
		return Status{}, errors.WrapCode(err, errors.CodeCommand, "validator.status", "failed to parse validator output")
	}
	if inner, ok := doc["validator"].(map[string]interface{}); ok {
		doc = inner
	}
	desc, _ := doc["description"].(map[string]interface{})
	st := Status{
		IsValidator:     true,
		OperatorAddress: cast.ToString(doc["operator_address"]),
		Moniker:         cast.ToString(desc["moniker"]),
		Status:          HumanizeBondStatus(cast.ToString(doc["status"])),
		Jailed:          cast.ToBool(doc["jailed"]),
		Tokens:          cast.ToString(doc["tokens"]),
	}
	if comm, ok := doc["commission"].(map[string]interface{}); ok {
		if rates, ok := comm["commission_rates"].(map[string]interface{}); ok {
			if rate, err := cast.ToFloat64E(rates["rate"]); err == nil {
				st.Commission = fmt.Sprintf("%.0f%%", rate*100)
			}
		}
	}
	if st.OperatorAddress == "" {
		st.OperatorAddress = valoper
	}
	return st, nil
}

func (s *svc) Register(ctx context.Context, args RegisterArgs) (string, error) {
	const op = "validator.register"
	if err := requireName(args.KeyName, op); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.Moniker) == "" {
		return "", errors.New(errors.CodeValidation, op, "moniker must not be empty")
	}
	amount := valueOr(args.Amount, DefaultStake)

	// Node must be synced or the tx is built against stale state.
	out, err := s.node(ctx, op, "", "status")
	if err != nil {
		return "", err
	}
	st, err := monitor.ParseStatus(node.Combined(out))
	if err != nil {
		return "", errors.WrapCode(err, errors.CodePrecondition, op, "cannot determine sync state")
	}
	if st.CatchingUp {
		return "", errors.Newf(errors.CodePrecondition, op,
			"node is still syncing (height %d); wait until it is fully synced before registering", st.Height)
	}

	addr, err := s.Address(ctx, args.KeyName)
	if err != nil {
		return "", err
	}
	bal, err := s.Balance(ctx, addr)
	if err != nil {
		return "", err
	}
	if !enough(bal, amount) {
		return "", errors.Newf(errors.CodePrecondition, op,
			"insufficient balance: have %s %s, need at least %s %s; fund %s from the faucet",
			FormatTokens(bal), "PC", FormatTokens(amount), "PC", addr).
			WithContext("balance", bal).
			WithContext("required", amount)
	}

	pub, err := s.node(ctx, op, "", "tendermint", "show-validator", "--home", s.opts.HomeDir)
	if err != nil {
		return "", err
	}
	pubJSON := strings.TrimSpace(node.Combined(pub))
	if !json.Valid([]byte(pubJSON)) {
		return "", errors.New(errors.CodeCommand, op, "show-validator returned malformed pubkey")
	}

	val := map[string]any{
		"pubkey":                     json.RawMessage(pubJSON),
		"amount":                     fmt.Sprintf("%s%s", amount, s.opts.Denom),
		"moniker":                    args.Moniker,
		"identity":                   "",
		"website":                    "",
		"security":                   "",
		"details":                    valueOr(args.Details, "Push Chain Validator"),
		"commission-rate":            valueOr(args.CommissionRate, "0.10"),
		"commission-max-rate":        "0.20",
		"commission-max-change-rate": "0.01",
		"min-self-delegation":        valueOr(args.MinSelfDelegation, "1"),
	}
	payload, err := json.MarshalIndent(val, "", "  ")
	if err != nil {
		return "", errors.WrapCode(err, errors.CodeCommand, op, "failed to encode validator file")
	}
	stdout, code, err := s.run.ExecInput(ctx, string(payload), "sh", "-c", "cat > "+validatorFile)
	if err != nil || code != 0 {
		return "", errors.New(errors.CodeCommand, op, "failed to write validator file in container").
			WithCause(err).WithContext("output", stdout)
	}

	txCtx, cancel := context.WithTimeout(ctx, s.opts.TxTimeout)
	defer cancel()
	txArgs := append([]string{"tx", "staking", "create-validator", validatorFile}, s.txFlags(args.KeyName)...)
	tx, err := s.node(txCtx, op, "", txArgs...)
	if err != nil {
		return "", err
	}
	return txHash(node.Combined(tx), op)
}

func (s *svc) Edit(ctx context.Context, args EditArgs) (string, error) {
	const op = "validator.edit"
	if err := requireName(args.KeyName, op); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.NewMoniker) == "" {
		return "", errors.New(errors.CodeValidation, op, "new moniker must not be empty")
	}
	txCtx, cancel := context.WithTimeout(ctx, s.opts.TxTimeout)
	defer cancel()
	txArgs := append([]string{"tx", "staking", "edit-validator", "--new-moniker", args.NewMoniker}, s.txFlags(args.KeyName)...)
	out, err := s.node(txCtx, op, "", txArgs...)
	if err != nil {
		return "", err
	}
	return txHash(node.Combined(out), op)
}

func (s *svc) Faucet(ctx context.Context, name string) (FaucetInfo, error) {
	addr, err := s.Address(ctx, name)
	if err != nil {
		return FaucetInfo{}, err
	}
	info := FaucetInfo{URL: s.opts.FaucetURL, Address: addr}
	if evm, err := s.EVMAddress(ctx, addr); err == nil {
		info.EVMAddress = evm
	}
	return info, nil
}

func requireName(name, op string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New(errors.CodeValidation, op, "key name required")
	}
	return nil
}

// parseKeyOutput reads `keys add --output json`. Some versions print a
// human preamble before the JSON object.
func parseKeyOutput(raw string) (Wallet, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, "{"); i > 0 {
		raw = raw[i:]
	}
	var payload struct {
		Name     string `json:"name"`
		Address  string `json:"address"`
		Mnemonic string `json:"mnemonic"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Wallet{}, errors.WrapCode(err, errors.CodeCommand, "validator.keys", "failed to parse key output")
	}
	if payload.Address == "" {
		return Wallet{}, errors.New(errors.CodeCommand, "validator.keys", "key output has no address")
	}
	return Wallet{Name: payload.Name, Address: payload.Address, Mnemonic: payload.Mnemonic}, nil
}

// parseDebugAddr extracts the hex address from `debug addr` output.
func parseDebugAddr(raw string) (string, error) {
	for _, ln := range strings.Split(raw, "\n") {
		k, v, ok := strings.Cut(ln, ":")
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(k), "hex") {
			v = strings.TrimPrefix(strings.TrimSpace(v), "0x")
			if v != "" {
				return "0x" + v, nil
			}
		}
	}
	return "", errors.New(errors.CodeCommand, "validator.evm_address", "hex address not found in debug addr output")
}

// txHash accepts JSON or YAML-ish tx responses.
func txHash(raw, op string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if i := strings.Index(trimmed, "{"); i >= 0 {
		var resp struct {
			Code   interface{} `json:"code"`
			TxHash string      `json:"txhash"`
			RawLog string      `json:"raw_log"`
		}
		if json.Unmarshal([]byte(trimmed[i:]), &resp) == nil && resp.TxHash != "" {
			if c := cast.ToInt(resp.Code); c != 0 {
				return "", errors.Newf(errors.CodeCommand, op, "transaction failed with code %d: %s", c, resp.RawLog).
					WithContext("txhash", resp.TxHash)
			}
			return resp.TxHash, nil
		}
	}
	for _, ln := range strings.Split(raw, "\n") {
		if strings.Contains(ln, "txhash:") {
			parts := strings.SplitN(ln, "txhash:", 2)
			if h := strings.TrimSpace(parts[1]); h != "" {
				return h, nil
			}
		}
	}
	return "", errors.New(errors.CodeCommand, op, "transaction submitted; txhash not found in output")
}

func extractErrorLine(s string) string {
	for _, l := range strings.Split(s, "\n") {
		if strings.Contains(l, "rpc error:") || strings.Contains(l, "failed to execute message") ||
			strings.Contains(l, "insufficient") || strings.Contains(l, "unauthorized") ||
			strings.HasPrefix(strings.TrimSpace(l), "Error:") {
			return strings.TrimSpace(l)
		}
	}
	return ""
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return "no output"
}

func valueOr(v, d string) string {
	if strings.TrimSpace(v) == "" {
		return d
	}
	return v
}
