package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// registryABI covers the deployed rewards-registry surface this service
// touches: registration reads/writes, waste lifecycle mirrors and balances.
const registryABI = `[
  {"name":"users","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"isRegistered","type":"bool"},{"name":"userType","type":"uint8"},{"name":"pointBalance","type":"uint256"}]},
  {"name":"registerUser","type":"function","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"name":"registerAgent","type":"function","stateMutability":"payable","inputs":[],"outputs":[]},
  {"name":"reportWaste","type":"function","stateMutability":"nonpayable","inputs":[{"name":"qrHash","type":"string"},{"name":"plasticType","type":"string"},{"name":"grams","type":"uint256"}],"outputs":[]},
  {"name":"collectWaste","type":"function","stateMutability":"nonpayable","inputs":[{"name":"qrHash","type":"string"}],"outputs":[]},
  {"name":"processWaste","type":"function","stateMutability":"nonpayable","inputs":[{"name":"id","type":"string"}],"outputs":[]},
  {"name":"getUserTokenBalance","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"name":"getAgentStats","type":"function","stateMutability":"view","inputs":[{"name":"agent","type":"address"}],"outputs":[{"name":"collected","type":"uint256"},{"name":"processed","type":"uint256"}]},
  {"name":"pointCost","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"name":"minimumAgentPoints","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

// Gas ceiling for registry writes; used for the pre-flight funds estimate.
const registerGasLimit = 200_000

// Config describes how to reach the deployed registry contract.
type Config struct {
	RPCURL          string
	ContractAddress string
	ChainID         *big.Int
	ConfirmTimeout  time.Duration
}

// Client talks to the on-chain rewards registry. Reads never fail for
// "not registered"; they return a zero-value Registration. Writes are
// submitted, waited on with a bounded timeout, and their outcome is settled by
// an immediate follow-up read rather than by trusting the receipt.
type Client struct {
	eth            *ethclient.Client
	contract       *bind.BoundContract
	address        common.Address
	chainID        *big.Int
	confirmTimeout time.Duration
}

// NewClient dials the RPC endpoint and binds the registry contract.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("chain RPC URL not configured")
	}
	if cfg.ContractAddress == "" {
		return nil, errors.New("registry contract address not configured")
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain node: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("parse registry ABI: %w", err)
	}

	chainID := cfg.ChainID
	if chainID == nil {
		chainID, err = eth.ChainID(ctx)
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("query chain id: %w", err)
		}
	}

	confirmTimeout := cfg.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = 90 * time.Second
	}

	addr := common.HexToAddress(cfg.ContractAddress)
	return &Client{
		eth:            eth,
		contract:       bind.NewBoundContract(addr, parsed, eth, eth, eth),
		address:        addr,
		chainID:        chainID,
		confirmTimeout: confirmTimeout,
	}, nil
}

// ChainID of the connected network.
func (c *Client) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}

// BalanceAt returns the native balance of an address.
func (c *Client) BalanceAt(ctx context.Context, address string) (*big.Int, error) {
	bal, err := c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, classify("balance query", err)
	}
	return bal, nil
}

// transact submits a registry write and waits for it to be mined, bounded by
// the confirmation timeout. A timeout is an unknown outcome, not a failure:
// callers must settle it by re-reading state.
func (c *Client) transact(ctx context.Context, opts *bind.TransactOpts, value *big.Int, method string, args ...interface{}) (string, error) {
	callOpts := *opts
	callOpts.Context = ctx
	callOpts.Value = value

	tx, err := c.contract.Transact(&callOpts, method, args...)
	if err != nil {
		return "", classify(method, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.eth, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return tx.Hash().Hex(), classify(method, fmt.Errorf("%w: %v", ErrConfirmTimeout, err))
		}
		return tx.Hash().Hex(), classify(method, err)
	}
	if receipt.Status != coretypes.ReceiptStatusSuccessful {
		return tx.Hash().Hex(), classify(method, fmt.Errorf("transaction %s reverted", tx.Hash().Hex()))
	}
	return tx.Hash().Hex(), nil
}
