package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"

	"waste-rewards-system/chain"
	"waste-rewards-system/models"
	"waste-rewards-system/wallet"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
)

// ErrAccountNotFound is surfaced when a login-mode reconciliation finds no
// account bound to the connected wallet: the caller redirects to registration
// instead of auto-creating one.
var ErrAccountNotFound = errors.New("no account bound to this wallet address")

// RegistrationInput carries the profile fields collected in register mode.
type RegistrationInput struct {
	Username string
	Email    string
	Password string
	Role     models.Role
}

// Offchain is the account-registry side of reconciliation, implemented by the
// auth service.
type Offchain interface {
	FindByWallet(ctx context.Context, address string) (*models.Account, error)
	BindWallet(ctx context.Context, accountID, address string) (*models.Account, error)
	Register(ctx context.Context, in RegistrationInput, walletAddress string) (*models.Account, error)
	DeleteAccount(ctx context.Context, accountID string) error
	SetChainStatus(ctx context.Context, accountID string, status models.ChainStatus) error
	IssueToken(ctx context.Context, account *models.Account) (string, error)
	TeardownSession(ctx context.Context, accountID string) error
	RecordRegistration(ctx context.Context, address string, reg chain.Registration) error
}

// Registry is the on-chain side, implemented by the chain client.
type Registry interface {
	GetRegistration(ctx context.Context, address string) (chain.Registration, error)
	AgentRegistrationFee(ctx context.Context) (*big.Int, error)
	EstimateRegistrationGas(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, address string) (*big.Int, error)
	RegisterUser(ctx context.Context, signer *bind.TransactOpts) (chain.Registration, string, error)
	RegisterAgent(ctx context.Context, signer *bind.TransactOpts, fee *big.Int) (chain.Registration, string, error)
}

// Input to one reconciliation run. Account is the credential-authenticated
// account in login mode; Registration is consulted in register mode.
type Input struct {
	Mode         Mode
	Account      *models.Account
	Registration *RegistrationInput
}

// Outcome of a reconciliation run.
type Outcome struct {
	State              State           `json:"state"`
	Account            *models.Account `json:"account,omitempty"`
	Token              string          `json:"token,omitempty"`
	Address            string          `json:"address,omitempty"`
	TxHash             string          `json:"tx_hash,omitempty"`
	NotFound           bool            `json:"not_found,omitempty"`
	FundingRequired    bool            `json:"funding_required,omitempty"`
	FundingInstruction string          `json:"funding_instruction,omitempty"`
	Warnings           []string        `json:"warnings,omitempty"`
	Redirect           string          `json:"redirect,omitempty"`
}

// Reconciler drives wallet connector, off-chain account client and on-chain
// registry client to a consistent joint state.
type Reconciler struct {
	connector wallet.Connector
	offchain  Offchain
	registry  Registry
	lock      Lock

	mu          sync.Mutex
	lastAddress string
	lastAccount string
}

func New(connector wallet.Connector, offchain Offchain, registry Registry, lock Lock) *Reconciler {
	if lock == nil {
		lock = NewMemoryLock()
	}
	return &Reconciler{
		connector: connector,
		offchain:  offchain,
		registry:  registry,
		lock:      lock,
	}
}

// Run executes one full reconciliation. It is sequential and runs to
// completion or explicit abort; overlapping runs for the same address are
// rejected with ErrBusy.
func (r *Reconciler) Run(ctx context.Context, in Input) (*Outcome, error) {
	session, err := r.connector.RequestAddress(ctx)
	if err != nil {
		return nil, fmt.Errorf("wallet connect: %w", err)
	}

	acquired, err := r.lock.Acquire(ctx, session.Address)
	if err != nil {
		return nil, fmt.Errorf("acquire reconcile lock: %w", err)
	}
	if !acquired {
		return nil, ErrBusy
	}
	defer func() {
		if err := r.lock.Release(context.WithoutCancel(ctx), session.Address); err != nil {
			log.Printf("❌ [RECONCILE] failed to release lock for %s: %v", session.Address, err)
		}
	}()

	out, err := r.run(ctx, in, session)
	if err == nil && out != nil {
		r.remember(session.Address, out.Account)
	}
	return out, err
}

func (r *Reconciler) run(ctx context.Context, in Input, session wallet.Session) (*Outcome, error) {
	flags := Flags{Mode: in.Mode}
	out := &Outcome{Address: session.Address}

	// Step 1: never allow two identities to overlap in memory. A cached
	// session bound to a different wallet tears everything down first.
	// Addresses are stored lowercased; the connector reports checksummed hex.
	if in.Account != nil && in.Account.WalletAddress != nil && !strings.EqualFold(*in.Account.WalletAddress, session.Address) {
		if _, effects, err := Step(StateWalletConnected, flags, EvIdentityMismatch); err == nil {
			r.apply(ctx, effects, in.Account, out, session)
		}
		in.Account = nil
	}

	state, _, err := Step(StateDisconnected, flags, EvWalletConnected)
	if err != nil {
		return nil, err
	}

	// Step 2: resolve the off-chain account for this address.
	account, created, err := r.resolveOffchain(ctx, in, session.Address)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			state, effects, _ := Step(state, flags, EvOffchainMissing)
			out.State = state
			r.apply(ctx, effects, nil, out, session)
			return out, nil
		}
		state, _, _ = Step(state, flags, EvOffchainFailed)
		out.State = state
		return out, err
	}
	flags.AccountCreated = created
	flags.RoleAgent = account.Role == models.RoleAgent
	if created {
		state, _, err = Step(state, flags, EvOffchainCreated)
	} else {
		state, _, err = Step(state, flags, EvOffchainFound)
	}
	if err != nil {
		return nil, err
	}
	out.Account = account

	// Step 3: consult the chain registry.
	reg, err := r.registry.GetRegistration(ctx, session.Address)
	if err != nil {
		// Reads failing is a chain fault, not a user condition: keep the
		// account, flag divergence, continue backend-only.
		log.Printf("⚠️ [RECONCILE] registration read failed for %s: %v", session.Address, err)
		state, _, _ = Step(state, flags, EvOnchainUnregistered)
		return r.finishDegraded(ctx, state, flags, account, out, err)
	}

	if reg.IsRegistered {
		state, effects, err := Step(state, flags, EvOnchainRegistered)
		if err != nil {
			return nil, err
		}
		out.State = state
		if err := r.offchain.RecordRegistration(ctx, session.Address, reg); err != nil {
			log.Printf("⚠️ [RECONCILE] mirror update failed for %s: %v", session.Address, err)
		}
		return out, r.apply(ctx, effects, account, out, session)
	}

	state, _, err = Step(state, flags, EvOnchainUnregistered)
	if err != nil {
		return nil, err
	}

	// Funds check: the wallet must cover at least the regular-user tier.
	gasCost, balance, fundsErr := r.fundsSnapshot(ctx, session.Address)
	if fundsErr != nil {
		log.Printf("⚠️ [RECONCILE] funds check failed for %s: %v", session.Address, fundsErr)
		return r.finishDegraded(ctx, state, flags, account, out, fundsErr)
	}
	if balance.Cmp(gasCost) < 0 {
		state, effects, err := Step(state, flags, EvFundsBelowRegular)
		if err != nil {
			return nil, err
		}
		out.State = state
		return out, r.apply(ctx, effects, account, out, session)
	}

	state, effects, err := Step(state, flags, EvFundsSufficient)
	if err != nil {
		return nil, err
	}
	return r.executeChainWrites(ctx, state, flags, effects, account, out, session)
}

// executeChainWrites runs the registration effect chain: agent registration
// with insufficient-funds fallback to the regular tier, then settlement.
func (r *Reconciler) executeChainWrites(ctx context.Context, state State, flags Flags, effects []Effect, account *models.Account, out *Outcome, session wallet.Session) (*Outcome, error) {
	for len(effects) > 0 {
		effect := effects[0]
		effects = effects[1:]

		var reg chain.Registration
		var txHash string
		var writeErr error

		switch effect {
		case EffectRegisterOnchainAgent:
			fee, feeErr := r.registry.AgentRegistrationFee(ctx)
			if feeErr != nil {
				writeErr = feeErr
			} else {
				reg, txHash, writeErr = r.registry.RegisterAgent(ctx, session.Signer, fee)
			}
			if errors.Is(writeErr, chain.ErrInsufficientFunds) {
				// Agent tier unaffordable: fall back to the regular tier
				// rather than aborting.
				out.Warnings = append(out.Warnings,
					"insufficient funds for agent registration; registered on-chain as regular user instead")
				next, nextEffects, err := Step(state, flags, EvAgentFeeShort)
				if err != nil {
					return nil, err
				}
				state = next
				effects = append(nextEffects, effects...)
				continue
			}
		case EffectRegisterOnchainUser:
			reg, txHash, writeErr = r.registry.RegisterUser(ctx, session.Signer)
			if errors.Is(writeErr, chain.ErrInsufficientFunds) {
				// Even the regular tier failed on funds: hard failure.
				next, nextEffects, err := Step(state, flags, EvFundsBelowRegular)
				if err != nil {
					return nil, err
				}
				out.State = next
				return out, r.apply(ctx, nextEffects, account, out, session)
			}
		default:
			return nil, fmt.Errorf("reconcile: unexpected pre-write effect %d", effect)
		}

		out.TxHash = txHash
		if writeErr != nil {
			log.Printf("⚠️ [RECONCILE] chain registration failed for %s: %v", session.Address, writeErr)
			next, nextEffects, err := Step(state, flags, EvChainWriteFailed)
			if err != nil {
				return nil, err
			}
			out.State = next
			return out, r.apply(ctx, nextEffects, account, out, session)
		}

		// Step 4: the write settled by re-read inside the registry client;
		// record the confirmed state.
		if err := r.offchain.RecordRegistration(ctx, session.Address, reg); err != nil {
			log.Printf("⚠️ [RECONCILE] mirror update failed for %s: %v", session.Address, err)
		}
		next, nextEffects, err := Step(state, flags, EvChainWriteConfirmed)
		if err != nil {
			return nil, err
		}
		out.State = next
		return out, r.apply(ctx, nextEffects, account, out, session)
	}
	return nil, fmt.Errorf("reconcile: no chain write effect produced")
}

// finishDegraded handles non-funds chain faults after the off-chain side
// succeeded: keep the account, flag it onchain-pending, surface a warning.
func (r *Reconciler) finishDegraded(ctx context.Context, state State, flags Flags, account *models.Account, out *Outcome, cause error) (*Outcome, error) {
	next, effects, err := Step(state, flags, EvChainWriteFailed)
	if err != nil {
		return nil, err
	}
	out.State = next
	out.Warnings = append(out.Warnings, fmt.Sprintf("on-chain registration pending: %v", cause))
	return out, r.apply(ctx, effects, account, out, outSession(out))
}

func outSession(out *Outcome) wallet.Session {
	return wallet.Session{Address: out.Address}
}

// apply executes machine effects against the collaborators.
func (r *Reconciler) apply(ctx context.Context, effects []Effect, account *models.Account, out *Outcome, session wallet.Session) error {
	for _, effect := range effects {
		switch effect {
		case EffectTeardownSession:
			if account != nil {
				if err := r.offchain.TeardownSession(ctx, account.ID); err != nil {
					log.Printf("❌ [RECONCILE] session teardown failed for %s: %v", account.ID, err)
				}
			}
			r.connector.Disconnect()
			out.Token = ""
		case EffectCompensateDelete:
			if account != nil {
				if err := r.offchain.DeleteAccount(ctx, account.ID); err != nil {
					return fmt.Errorf("compensating delete of account %s: %w", account.ID, err)
				}
				log.Printf("↩️ [RECONCILE] compensated: deleted account %s after failed chain registration", account.ID)
				out.Account = nil
			}
		case EffectSurfaceFunding:
			out.FundingRequired = true
			out.FundingInstruction = fmt.Sprintf(
				"wallet %s has insufficient funds for on-chain registration; send enough native currency to %s and reconnect",
				session.Address, session.Address)
		case EffectSurfaceNotFound:
			out.NotFound = true
			out.Redirect = "/register"
		case EffectFlagPending:
			if account != nil {
				if err := r.offchain.SetChainStatus(ctx, account.ID, models.ChainStatusPending); err != nil {
					return fmt.Errorf("flag account %s onchain-pending: %w", account.ID, err)
				}
				account.ChainStatus = models.ChainStatusPending
			}
		case EffectWarnDegraded:
			if len(out.Warnings) == 0 {
				out.Warnings = append(out.Warnings, "on-chain registration incomplete; backend-only features remain available")
			}
		case EffectSyncChainFlag:
			if account != nil {
				if err := r.offchain.SetChainStatus(ctx, account.ID, models.ChainStatusRegistered); err != nil {
					return fmt.Errorf("sync chain flag for account %s: %w", account.ID, err)
				}
				account.ChainStatus = models.ChainStatusRegistered
			}
		case EffectRouteDashboard:
			if account == nil {
				break
			}
			token, err := r.offchain.IssueToken(ctx, account)
			if err != nil {
				return fmt.Errorf("issue session token: %w", err)
			}
			out.Token = token
			out.Redirect = dashboardFor(account)
		case EffectLookupOffchain, EffectQueryChain, EffectCheckFunds,
			EffectRegisterOffchain, EffectRegisterOnchainUser, EffectRegisterOnchainAgent:
			// Driven inline by run/executeChainWrites.
		}
	}
	return nil
}

func (r *Reconciler) resolveOffchain(ctx context.Context, in Input, address string) (*models.Account, bool, error) {
	if in.Account != nil {
		if in.Account.WalletAddress == nil {
			account, err := r.offchain.BindWallet(ctx, in.Account.ID, address)
			return account, false, err
		}
		return in.Account, false, nil
	}

	account, err := r.offchain.FindByWallet(ctx, address)
	if err == nil {
		return account, false, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, false, err
	}
	if in.Mode != ModeRegister || in.Registration == nil {
		return nil, false, ErrAccountNotFound
	}

	account, err = r.offchain.Register(ctx, *in.Registration, address)
	if err != nil {
		return nil, false, err
	}
	return account, true, nil
}

func (r *Reconciler) fundsSnapshot(ctx context.Context, address string) (gasCost, balance *big.Int, err error) {
	gasCost, err = r.registry.EstimateRegistrationGas(ctx)
	if err != nil {
		return nil, nil, err
	}
	balance, err = r.registry.BalanceAt(ctx, address)
	if err != nil {
		return nil, nil, err
	}
	return gasCost, balance, nil
}

func (r *Reconciler) remember(address string, account *models.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastAddress = address
	if account != nil {
		r.lastAccount = account.ID
	} else {
		r.lastAccount = ""
	}
}

// WatchAccountChanges reacts to provider account switches: full session
// teardown for the previous identity, then a fresh connect-mode run. Never an
// in-place identity update.
func (r *Reconciler) WatchAccountChanges(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case newAddr, ok := <-r.connector.AccountChanges():
			if !ok {
				return
			}
			r.mu.Lock()
			prevAccount := r.lastAccount
			r.lastAddress = ""
			r.lastAccount = ""
			r.mu.Unlock()

			if prevAccount != "" {
				if err := r.offchain.TeardownSession(ctx, prevAccount); err != nil {
					log.Printf("❌ [RECONCILE] teardown on account switch failed: %v", err)
				}
			}
			r.connector.Disconnect()

			log.Printf("🔄 [RECONCILE] wallet account switched to %s — restarting reconciliation", newAddr)
			if _, err := r.Run(ctx, Input{Mode: ModeConnect}); err != nil {
				log.Printf("❌ [RECONCILE] restart after account switch failed: %v", err)
			}
		}
	}
}

func dashboardFor(account *models.Account) string {
	if account.Role == models.RoleAgent {
		if account.AgentStatus == models.AgentApproved {
			return "/dashboard/agent"
		}
		return "/dashboard/pending"
	}
	return "/dashboard"
}
