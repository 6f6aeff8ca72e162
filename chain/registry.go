package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Chain-side role encoding of the registry's userType field.
const (
	chainRoleNone  uint8 = 0
	chainRoleUser  uint8 = 1
	chainRoleAgent uint8 = 2
)

// Registration is the on-chain record for a wallet address. The zero value
// means "not registered".
type Registration struct {
	IsRegistered bool
	Role         string // "", "regular" or "agent"
	PointBalance *big.Int
}

// AgentStats mirrors the contract's per-agent counters.
type AgentStats struct {
	Collected *big.Int
	Processed *big.Int
}

func roleName(userType uint8) string {
	switch userType {
	case chainRoleUser:
		return "regular"
	case chainRoleAgent:
		return "agent"
	default:
		return ""
	}
}

// GetRegistration reads the registration state of an address. An unregistered
// address yields a zero-value record, never an error.
func (c *Client) GetRegistration(ctx context.Context, address string) (Registration, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "users", common.HexToAddress(address))
	if err != nil {
		return Registration{}, classify("registration query", err)
	}
	if len(out) != 3 {
		return Registration{}, classify("registration query", fmt.Errorf("unexpected users() output arity %d", len(out)))
	}

	isRegistered, _ := out[0].(bool)
	userType, _ := out[1].(uint8)
	points, _ := out[2].(*big.Int)
	if points == nil {
		points = new(big.Int)
	}

	reg := Registration{IsRegistered: isRegistered, PointBalance: points}
	if isRegistered {
		reg.Role = roleName(userType)
	}
	return reg, nil
}

// AgentRegistrationFee computes the payable amount for agent registration:
// pointCost * minimumAgentPoints, both read from the contract at call time.
// The cost can change on-chain, so this must be fetched immediately before
// constructing the transaction and never cached.
func (c *Client) AgentRegistrationFee(ctx context.Context) (*big.Int, error) {
	opts := &bind.CallOpts{Context: ctx}

	var costOut []interface{}
	if err := c.contract.Call(opts, &costOut, "pointCost"); err != nil {
		return nil, classify("point cost query", err)
	}
	var minOut []interface{}
	if err := c.contract.Call(opts, &minOut, "minimumAgentPoints"); err != nil {
		return nil, classify("minimum agent points query", err)
	}

	cost, ok1 := costOut[0].(*big.Int)
	minPoints, ok2 := minOut[0].(*big.Int)
	if !ok1 || !ok2 {
		return nil, classify("agent fee query", fmt.Errorf("unexpected output types"))
	}
	return new(big.Int).Mul(cost, minPoints), nil
}

// EstimateRegistrationGas returns the native-currency cost of the gas budget
// for a registration write at current prices.
func (c *Client) EstimateRegistrationGas(ctx context.Context) (*big.Int, error) {
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, classify("gas price query", err)
	}
	return new(big.Int).Mul(gasPrice, big.NewInt(registerGasLimit)), nil
}

// RegisterUser submits a regular-user registration for the signing address and
// settles the outcome by re-reading registration state. The returned
// Registration reflects post-write chain state even when the wait timed out.
func (c *Client) RegisterUser(ctx context.Context, signer *bind.TransactOpts) (Registration, string, error) {
	txHash, writeErr := c.transact(ctx, signer, nil, "registerUser")
	return c.settleWrite(ctx, signer.From, txHash, writeErr)
}

// RegisterAgent submits an agent registration paying the supplied fee, then
// settles by re-read like RegisterUser.
func (c *Client) RegisterAgent(ctx context.Context, signer *bind.TransactOpts, fee *big.Int) (Registration, string, error) {
	txHash, writeErr := c.transact(ctx, signer, fee, "registerAgent")
	return c.settleWrite(ctx, signer.From, txHash, writeErr)
}

// settleWrite never trusts the receipt alone: after any write attempt the
// registration is re-read, and a confirmed on-chain registration wins over a
// write error (the timeout / unknown-outcome rule).
func (c *Client) settleWrite(ctx context.Context, from common.Address, txHash string, writeErr error) (Registration, string, error) {
	reg, readErr := c.GetRegistration(ctx, from.Hex())
	if readErr == nil && reg.IsRegistered {
		return reg, txHash, nil
	}
	if writeErr != nil {
		return reg, txHash, writeErr
	}
	if readErr != nil {
		return Registration{}, txHash, readErr
	}
	// Mined without error yet still unregistered: surface as generic failure.
	return reg, txHash, classify("registration settle", fmt.Errorf("write confirmed but state unchanged for %s", from.Hex()))
}

// ReportWaste mirrors a waste report on-chain (best-effort from the caller's
// perspective).
func (c *Client) ReportWaste(ctx context.Context, signer *bind.TransactOpts, qrHash, plasticType string, grams int64) (string, error) {
	return c.transact(ctx, signer, nil, "reportWaste", qrHash, plasticType, big.NewInt(grams))
}

// CollectWaste mirrors a collection on-chain.
func (c *Client) CollectWaste(ctx context.Context, signer *bind.TransactOpts, qrHash string) (string, error) {
	return c.transact(ctx, signer, nil, "collectWaste", qrHash)
}

// ProcessWaste mirrors a processing step on-chain.
func (c *Client) ProcessWaste(ctx context.Context, signer *bind.TransactOpts, reportID string) (string, error) {
	return c.transact(ctx, signer, nil, "processWaste", reportID)
}

// TokenBalance reads an address's reward-token balance.
func (c *Client) TokenBalance(ctx context.Context, address string) (*big.Int, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getUserTokenBalance", common.HexToAddress(address))
	if err != nil {
		return nil, classify("token balance query", err)
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return nil, classify("token balance query", fmt.Errorf("unexpected output type"))
	}
	return bal, nil
}

// GetAgentStats reads the contract's collected/processed counters for an agent.
func (c *Client) GetAgentStats(ctx context.Context, address string) (AgentStats, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getAgentStats", common.HexToAddress(address))
	if err != nil {
		return AgentStats{}, classify("agent stats query", err)
	}
	if len(out) != 2 {
		return AgentStats{}, classify("agent stats query", fmt.Errorf("unexpected getAgentStats output arity %d", len(out)))
	}
	collected, _ := out[0].(*big.Int)
	processed, _ := out[1].(*big.Int)
	if collected == nil || processed == nil {
		return AgentStats{}, classify("agent stats query", fmt.Errorf("unexpected output types"))
	}
	return AgentStats{Collected: collected, Processed: processed}, nil
}
