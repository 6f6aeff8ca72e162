package reconcile

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"waste-rewards-system/chain"
	"waste-rewards-system/models"
	"waste-rewards-system/wallet"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
)

const testAddress = "0x1111111111111111111111111111111111111111"

type fakeConnector struct {
	address string
	changes chan string
}

func newFakeConnector(address string) *fakeConnector {
	return &fakeConnector{address: address, changes: make(chan string, 1)}
}

func (c *fakeConnector) RequestAddress(context.Context) (wallet.Session, error) {
	return wallet.Session{Address: c.address, Signer: &bind.TransactOpts{}}, nil
}
func (c *fakeConnector) AccountChanges() <-chan string { return c.changes }
func (c *fakeConnector) Disconnect()                   {}

type fakeOffchain struct {
	accounts map[string]*models.Account // by wallet address

	registered  int
	deleted     []string
	tornDown    []string
	chainStatus map[string]models.ChainStatus
	mirrored    int
}

func newFakeOffchain() *fakeOffchain {
	return &fakeOffchain{
		accounts:    map[string]*models.Account{},
		chainStatus: map[string]models.ChainStatus{},
	}
}

func (f *fakeOffchain) FindByWallet(_ context.Context, address string) (*models.Account, error) {
	if account, ok := f.accounts[strings.ToLower(address)]; ok {
		return account, nil
	}
	return nil, ErrAccountNotFound
}

func (f *fakeOffchain) BindWallet(_ context.Context, accountID, address string) (*models.Account, error) {
	for _, account := range f.accounts {
		if account.ID == accountID {
			addr := strings.ToLower(address)
			account.WalletAddress = &addr
			f.accounts[addr] = account
			return account, nil
		}
	}
	return nil, errors.New("account not found")
}

func (f *fakeOffchain) Register(_ context.Context, in RegistrationInput, walletAddress string) (*models.Account, error) {
	f.registered++
	addr := strings.ToLower(walletAddress)
	account := &models.Account{
		ID:            "acct-" + in.Username,
		Username:      in.Username,
		Email:         in.Email,
		Role:          in.Role,
		WalletAddress: &addr,
	}
	f.accounts[addr] = account
	return account, nil
}

func (f *fakeOffchain) DeleteAccount(_ context.Context, accountID string) error {
	f.deleted = append(f.deleted, accountID)
	for addr, account := range f.accounts {
		if account.ID == accountID {
			delete(f.accounts, addr)
		}
	}
	return nil
}

func (f *fakeOffchain) SetChainStatus(_ context.Context, accountID string, status models.ChainStatus) error {
	f.chainStatus[accountID] = status
	return nil
}

func (f *fakeOffchain) IssueToken(_ context.Context, account *models.Account) (string, error) {
	return "token-" + account.ID, nil
}

func (f *fakeOffchain) TeardownSession(_ context.Context, accountID string) error {
	f.tornDown = append(f.tornDown, accountID)
	return nil
}

func (f *fakeOffchain) RecordRegistration(context.Context, string, chain.Registration) error {
	f.mirrored++
	return nil
}

type fakeRegistry struct {
	registration chain.Registration
	readErr      error
	balance      *big.Int
	gasCost      *big.Int
	fee          *big.Int

	agentErr  error
	userErr   error
	agentRuns int
	userRuns  int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		balance: big.NewInt(1_000_000),
		gasCost: big.NewInt(1_000),
		fee:     big.NewInt(500),
	}
}

func (f *fakeRegistry) GetRegistration(context.Context, string) (chain.Registration, error) {
	return f.registration, f.readErr
}
func (f *fakeRegistry) AgentRegistrationFee(context.Context) (*big.Int, error) { return f.fee, nil }
func (f *fakeRegistry) EstimateRegistrationGas(context.Context) (*big.Int, error) {
	return f.gasCost, nil
}
func (f *fakeRegistry) BalanceAt(context.Context, string) (*big.Int, error) { return f.balance, nil }

func (f *fakeRegistry) RegisterUser(context.Context, *bind.TransactOpts) (chain.Registration, string, error) {
	f.userRuns++
	if f.userErr != nil {
		return chain.Registration{}, "", f.userErr
	}
	return chain.Registration{IsRegistered: true, Role: "regular"}, "0xusertx", nil
}

func (f *fakeRegistry) RegisterAgent(context.Context, *bind.TransactOpts, *big.Int) (chain.Registration, string, error) {
	f.agentRuns++
	if f.agentErr != nil {
		return chain.Registration{}, "", f.agentErr
	}
	return chain.Registration{IsRegistered: true, Role: "agent"}, "0xagenttx", nil
}

func newTestReconciler(offchain *fakeOffchain, registry *fakeRegistry) *Reconciler {
	return New(newFakeConnector(testAddress), offchain, registry, NewMemoryLock())
}

func TestRunLoginNoAccount(t *testing.T) {
	offchain := newFakeOffchain()
	r := newTestReconciler(offchain, newFakeRegistry())

	out, err := r.Run(context.Background(), Input{Mode: ModeLogin})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !out.NotFound {
		t.Fatal("expected not-found outcome")
	}
	if out.Redirect != "/register" {
		t.Fatalf("expected /register redirect, got %q", out.Redirect)
	}
	if offchain.registered != 0 {
		t.Fatal("login mode must never auto-create an account")
	}
}

func TestRunRegisterZeroBalanceCompensates(t *testing.T) {
	offchain := newFakeOffchain()
	registry := newFakeRegistry()
	registry.balance = big.NewInt(0)
	r := newTestReconciler(offchain, registry)

	out, err := r.Run(context.Background(), Input{
		Mode:         ModeRegister,
		Registration: &RegistrationInput{Username: "ama", Email: "ama@example.com", Role: models.RoleRegular},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if out.State != StateAborted {
		t.Fatalf("expected aborted, got %s", out.State)
	}
	if offchain.registered != 1 {
		t.Fatalf("expected one off-chain registration, got %d", offchain.registered)
	}
	if len(offchain.deleted) != 1 || offchain.deleted[0] != "acct-ama" {
		t.Fatalf("expected compensating delete of acct-ama, got %v", offchain.deleted)
	}
	if len(offchain.accounts) != 0 {
		t.Fatal("compensated account must not survive")
	}
	if !out.FundingRequired {
		t.Fatal("expected funding-required outcome")
	}
	if !strings.Contains(out.FundingInstruction, testAddress) {
		t.Fatalf("funding instruction must name the wallet address, got %q", out.FundingInstruction)
	}
	if out.Token != "" {
		t.Fatal("aborted run must not carry a session token")
	}
}

func TestRunLoginExistingAccountZeroBalanceKeepsAccount(t *testing.T) {
	offchain := newFakeOffchain()
	addr := testAddress
	offchain.accounts[addr] = &models.Account{ID: "acct-old", Role: models.RoleRegular, WalletAddress: &addr}

	registry := newFakeRegistry()
	registry.balance = big.NewInt(0)
	r := newTestReconciler(offchain, registry)

	out, err := r.Run(context.Background(), Input{Mode: ModeLogin})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.State != StateAborted {
		t.Fatalf("expected aborted, got %s", out.State)
	}
	if len(offchain.deleted) != 0 {
		t.Fatalf("pre-existing account must never be deleted, got %v", offchain.deleted)
	}
	if len(offchain.tornDown) == 0 {
		t.Fatal("expected session teardown")
	}
}

func TestRunAgentFeeShortFallsBackToRegular(t *testing.T) {
	offchain := newFakeOffchain()
	registry := newFakeRegistry()
	registry.agentErr = chain.ErrInsufficientFunds
	r := newTestReconciler(offchain, registry)

	out, err := r.Run(context.Background(), Input{
		Mode:         ModeRegister,
		Registration: &RegistrationInput{Username: "kwame", Email: "kwame@example.com", Role: models.RoleAgent},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if registry.agentRuns != 1 || registry.userRuns != 1 {
		t.Fatalf("expected agent attempt then regular fallback, got agent=%d user=%d", registry.agentRuns, registry.userRuns)
	}
	if out.State != StateReconciled {
		t.Fatalf("expected reconciled, got %s", out.State)
	}
	if len(offchain.deleted) != 0 {
		t.Fatal("fallback must keep the account")
	}
	if out.Account == nil || out.Account.Role != models.RoleAgent {
		t.Fatal("off-chain role must remain agent after the regular-tier fallback")
	}
	if len(out.Warnings) == 0 {
		t.Fatal("fallback must surface a warning")
	}
	if out.Token == "" {
		t.Fatal("expected a session token on successful reconciliation")
	}
}

func TestRunChainWriteFailedFlagsPending(t *testing.T) {
	offchain := newFakeOffchain()
	registry := newFakeRegistry()
	registry.userErr = &chain.ChainError{Op: "registerUser", Err: errors.New("node unreachable")}
	r := newTestReconciler(offchain, registry)

	out, err := r.Run(context.Background(), Input{
		Mode:         ModeRegister,
		Registration: &RegistrationInput{Username: "efua", Email: "efua@example.com", Role: models.RoleRegular},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if out.State != StateReconciled {
		t.Fatalf("expected degraded reconciled, got %s", out.State)
	}
	if len(offchain.deleted) != 0 {
		t.Fatal("non-funds chain failure must keep the account")
	}
	if offchain.chainStatus["acct-efua"] != models.ChainStatusPending {
		t.Fatalf("expected onchain-pending flag, got %q", offchain.chainStatus["acct-efua"])
	}
	if len(out.Warnings) == 0 {
		t.Fatal("degraded outcome must carry a warning")
	}
}

func TestRunAlreadyRegisteredOnChain(t *testing.T) {
	offchain := newFakeOffchain()
	addr := testAddress
	offchain.accounts[addr] = &models.Account{ID: "acct-reg", Role: models.RoleRegular, WalletAddress: &addr}

	registry := newFakeRegistry()
	registry.registration = chain.Registration{IsRegistered: true, Role: "regular", PointBalance: big.NewInt(42)}
	r := newTestReconciler(offchain, registry)

	out, err := r.Run(context.Background(), Input{Mode: ModeLogin})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.State != StateReconciled {
		t.Fatalf("expected reconciled, got %s", out.State)
	}
	if registry.userRuns != 0 || registry.agentRuns != 0 {
		t.Fatal("already-registered wallet must not trigger a chain write")
	}
	if offchain.chainStatus["acct-reg"] != models.ChainStatusRegistered {
		t.Fatal("expected chain flag synced to registered")
	}
	if offchain.mirrored == 0 {
		t.Fatal("expected the registration mirror to be updated")
	}
	if out.Redirect != "/dashboard" {
		t.Fatalf("expected /dashboard redirect, got %q", out.Redirect)
	}
}

func TestRunRejectsOverlappingRuns(t *testing.T) {
	offchain := newFakeOffchain()
	lock := NewMemoryLock()
	r := New(newFakeConnector(testAddress), offchain, newFakeRegistry(), lock)

	acquired, err := lock.Acquire(context.Background(), testAddress)
	if err != nil || !acquired {
		t.Fatalf("pre-acquire lock: acquired=%v err=%v", acquired, err)
	}

	if _, err := r.Run(context.Background(), Input{Mode: ModeLogin}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestRunIdentityMismatchTearsDownFirst(t *testing.T) {
	offchain := newFakeOffchain()
	otherAddr := "0x2222222222222222222222222222222222222222"
	stale := &models.Account{ID: "acct-stale", Role: models.RoleRegular, WalletAddress: &otherAddr}

	addr := testAddress
	offchain.accounts[addr] = &models.Account{ID: "acct-current", Role: models.RoleRegular, WalletAddress: &addr}
	registry := newFakeRegistry()
	registry.registration = chain.Registration{IsRegistered: true, Role: "regular"}
	r := newTestReconciler(offchain, registry)

	out, err := r.Run(context.Background(), Input{Mode: ModeLogin, Account: stale})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(offchain.tornDown) == 0 || offchain.tornDown[0] != "acct-stale" {
		t.Fatalf("expected stale session teardown first, got %v", offchain.tornDown)
	}
	if out.Account == nil || out.Account.ID != "acct-current" {
		t.Fatal("expected reconciliation to continue with the wallet's own account")
	}
}
