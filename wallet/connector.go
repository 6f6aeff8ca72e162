package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrNoProvider   = errors.New("no wallet provider available")
	ErrUserRejected = errors.New("wallet connection rejected")
)

// Session is a connected wallet: an address plus the capability to sign
// transactions as that address.
type Session struct {
	Address string
	Signer  *bind.TransactOpts
}

// Connector obtains a wallet address and signing capability. RequestAddress is
// idempotent while connected: repeated calls return the same session without
// re-prompting. AccountChanges delivers the new address when the provider
// switches accounts; consumers must treat that as a full session teardown and
// restart, never an in-place identity update.
type Connector interface {
	RequestAddress(ctx context.Context) (Session, error)
	AccountChanges() <-chan string
	Disconnect()
}

// KeyedConnector derives the session from a private key, standing in for an
// extension-style provider when the service operates its own signer.
type KeyedConnector struct {
	mu      sync.Mutex
	key     string
	chainID *big.Int
	session *Session
	changes chan string
}

func NewKeyedConnector(privateKeyHex string, chainID *big.Int) *KeyedConnector {
	return &KeyedConnector{
		key:     privateKeyHex,
		chainID: chainID,
		changes: make(chan string, 1),
	}
}

func (c *KeyedConnector) RequestAddress(ctx context.Context) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return *c.session, nil
	}
	if c.key == "" {
		return Session{}, ErrNoProvider
	}

	key, err := crypto.HexToECDSA(c.key)
	if err != nil {
		return Session{}, fmt.Errorf("parse signer key: %w", err)
	}
	signer, err := bind.NewKeyedTransactorWithChainID(key, c.chainID)
	if err != nil {
		return Session{}, fmt.Errorf("build transactor: %w", err)
	}
	signer.Context = ctx

	c.session = &Session{
		Address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Signer:  signer,
	}
	return *c.session, nil
}

func (c *KeyedConnector) AccountChanges() <-chan string { return c.changes }

// SwitchKey replaces the signing key and emits an account-change event, the
// way an extension reports a selected-account switch.
func (c *KeyedConnector) SwitchKey(privateKeyHex string) error {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return fmt.Errorf("parse signer key: %w", err)
	}

	c.mu.Lock()
	c.key = privateKeyHex
	c.session = nil
	c.mu.Unlock()

	select {
	case c.changes <- crypto.PubkeyToAddress(key.PublicKey).Hex():
	default:
	}
	return nil
}

func (c *KeyedConnector) Disconnect() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}
