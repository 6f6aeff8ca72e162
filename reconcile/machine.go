// Package reconcile keeps an off-chain account record and an on-chain wallet
// registration consistent for one session. The decision logic lives in a pure
// transition table (Step); the Reconciler drives it against the wallet
// connector, the account store and the registry client.
package reconcile

import "fmt"

// State of one reconciliation session.
type State int

const (
	StateDisconnected State = iota
	StateWalletConnected
	StateOffchainKnown
	StateOnchainKnown
	StateReconciled
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateWalletConnected:
		return "wallet_connected"
	case StateOffchainKnown:
		return "offchain_known"
	case StateOnchainKnown:
		return "onchain_known"
	case StateReconciled:
		return "reconciled"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// Mode is the user intent that started the reconciliation.
type Mode int

const (
	ModeLogin Mode = iota
	ModeRegister
	ModeConnect
)

// Event is an observation reported to the machine by the driver.
type Event int

const (
	EvWalletConnected Event = iota
	EvAccountSwitched       // provider reports a different selected account
	EvIdentityMismatch      // cached session belongs to a different wallet
	EvOffchainFound
	EvOffchainMissing
	EvOffchainCreated
	EvOffchainFailed
	EvOnchainRegistered
	EvOnchainUnregistered
	EvFundsBelowRegular // balance cannot cover even the regular-user tier
	EvFundsSufficient
	EvAgentFeeShort // insufficient for the agent fee specifically
	EvChainWriteConfirmed
	EvChainWriteFailed // non-funds chain failure
)

// Effect is an action the driver must perform after a transition.
type Effect int

const (
	EffectTeardownSession Effect = iota
	EffectLookupOffchain
	EffectRegisterOffchain
	EffectSurfaceNotFound
	EffectQueryChain
	EffectCheckFunds
	EffectRegisterOnchainUser
	EffectRegisterOnchainAgent
	EffectCompensateDelete // delete the account created during this run
	EffectFlagPending      // keep account, record divergence
	EffectSurfaceFunding   // actionable insufficient-funds signal
	EffectWarnDegraded
	EffectSyncChainFlag
	EffectRouteDashboard
)

// Flags parameterise transitions on facts the driver knows.
type Flags struct {
	Mode           Mode
	AccountCreated bool // the off-chain account was created during this run
	RoleAgent      bool
}

// Step is the single transition function: (state, event) -> (state, effects).
// Every login/register/connect path runs through the same table; the paths
// differ only through Flags.
func Step(s State, f Flags, ev Event) (State, []Effect, error) {
	// Session-teardown events win in any state.
	if ev == EvAccountSwitched || ev == EvIdentityMismatch {
		return StateDisconnected, []Effect{EffectTeardownSession}, nil
	}

	switch s {
	case StateDisconnected:
		if ev == EvWalletConnected {
			return StateWalletConnected, []Effect{EffectLookupOffchain}, nil
		}

	case StateWalletConnected:
		switch ev {
		case EvOffchainFound, EvOffchainCreated:
			return StateOffchainKnown, []Effect{EffectQueryChain}, nil
		case EvOffchainMissing:
			if f.Mode == ModeRegister {
				return StateWalletConnected, []Effect{EffectRegisterOffchain}, nil
			}
			// Never auto-create an account from a bare wallet connection.
			return StateAborted, []Effect{EffectSurfaceNotFound}, nil
		case EvOffchainFailed:
			// Abort before any chain interaction; nothing to compensate.
			return StateAborted, nil, nil
		}

	case StateOffchainKnown:
		switch ev {
		case EvOnchainRegistered:
			return StateReconciled, []Effect{EffectSyncChainFlag, EffectRouteDashboard}, nil
		case EvOnchainUnregistered:
			return StateOnchainKnown, []Effect{EffectCheckFunds}, nil
		}

	case StateOnchainKnown:
		switch ev {
		case EvFundsBelowRegular:
			// Hard failure: never leave a dangling off-chain account with no
			// matching on-chain registration.
			effects := []Effect{EffectTeardownSession, EffectSurfaceFunding}
			if f.AccountCreated {
				effects = append([]Effect{EffectCompensateDelete}, effects...)
			}
			return StateAborted, effects, nil
		case EvFundsSufficient:
			if f.RoleAgent {
				return StateOnchainKnown, []Effect{EffectRegisterOnchainAgent}, nil
			}
			return StateOnchainKnown, []Effect{EffectRegisterOnchainUser}, nil
		case EvAgentFeeShort:
			// Fallback: an approved agent without a chain role is a recoverable
			// degraded state; no chain registration at all is not.
			return StateOnchainKnown, []Effect{EffectRegisterOnchainUser}, nil
		case EvChainWriteConfirmed:
			return StateReconciled, []Effect{EffectSyncChainFlag, EffectRouteDashboard}, nil
		case EvChainWriteFailed:
			return StateReconciled, []Effect{EffectFlagPending, EffectWarnDegraded, EffectRouteDashboard}, nil
		}
	}

	return s, nil, fmt.Errorf("reconcile: event %d not valid in state %s", ev, s)
}
