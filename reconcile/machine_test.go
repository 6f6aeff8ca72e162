package reconcile

import (
	"reflect"
	"testing"
)

func TestStepHappyPathLogin(t *testing.T) {
	flags := Flags{Mode: ModeLogin}

	state, effects, err := Step(StateDisconnected, flags, EvWalletConnected)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if state != StateWalletConnected {
		t.Fatalf("expected wallet_connected, got %s", state)
	}
	if !reflect.DeepEqual(effects, []Effect{EffectLookupOffchain}) {
		t.Fatalf("unexpected effects: %v", effects)
	}

	state, _, err = Step(state, flags, EvOffchainFound)
	if err != nil {
		t.Fatalf("offchain found: %v", err)
	}
	if state != StateOffchainKnown {
		t.Fatalf("expected offchain_known, got %s", state)
	}

	state, effects, err = Step(state, flags, EvOnchainRegistered)
	if err != nil {
		t.Fatalf("onchain registered: %v", err)
	}
	if state != StateReconciled {
		t.Fatalf("expected reconciled, got %s", state)
	}
	if !reflect.DeepEqual(effects, []Effect{EffectSyncChainFlag, EffectRouteDashboard}) {
		t.Fatalf("unexpected terminal effects: %v", effects)
	}
}

func TestStepTeardownEventsWinEverywhere(t *testing.T) {
	states := []State{
		StateDisconnected,
		StateWalletConnected,
		StateOffchainKnown,
		StateOnchainKnown,
		StateReconciled,
	}
	for _, s := range states {
		for _, ev := range []Event{EvAccountSwitched, EvIdentityMismatch} {
			next, effects, err := Step(s, Flags{}, ev)
			if err != nil {
				t.Fatalf("state %s event %d: %v", s, ev, err)
			}
			if next != StateDisconnected {
				t.Fatalf("state %s event %d: expected disconnected, got %s", s, ev, next)
			}
			if !reflect.DeepEqual(effects, []Effect{EffectTeardownSession}) {
				t.Fatalf("state %s event %d: expected teardown, got %v", s, ev, effects)
			}
		}
	}
}

func TestStepOffchainMissing(t *testing.T) {
	tests := []struct {
		name        string
		mode        Mode
		wantState   State
		wantEffects []Effect
	}{
		{"login aborts with not-found", ModeLogin, StateAborted, []Effect{EffectSurfaceNotFound}},
		{"connect aborts with not-found", ModeConnect, StateAborted, []Effect{EffectSurfaceNotFound}},
		{"register creates the account", ModeRegister, StateWalletConnected, []Effect{EffectRegisterOffchain}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, effects, err := Step(StateWalletConnected, Flags{Mode: tt.mode}, EvOffchainMissing)
			if err != nil {
				t.Fatalf("step: %v", err)
			}
			if state != tt.wantState {
				t.Fatalf("expected %s, got %s", tt.wantState, state)
			}
			if !reflect.DeepEqual(effects, tt.wantEffects) {
				t.Fatalf("expected %v, got %v", tt.wantEffects, effects)
			}
		})
	}
}

func TestStepFundsBelowRegular(t *testing.T) {
	// Pre-existing account: torn down but never deleted.
	state, effects, err := Step(StateOnchainKnown, Flags{Mode: ModeLogin}, EvFundsBelowRegular)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if state != StateAborted {
		t.Fatalf("expected aborted, got %s", state)
	}
	if !reflect.DeepEqual(effects, []Effect{EffectTeardownSession, EffectSurfaceFunding}) {
		t.Fatalf("unexpected effects: %v", effects)
	}

	// Account created during this run: compensated by deletion first.
	_, effects, err = Step(StateOnchainKnown, Flags{Mode: ModeRegister, AccountCreated: true}, EvFundsBelowRegular)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	want := []Effect{EffectCompensateDelete, EffectTeardownSession, EffectSurfaceFunding}
	if !reflect.DeepEqual(effects, want) {
		t.Fatalf("expected %v, got %v", want, effects)
	}
}

func TestStepAgentFeeFallback(t *testing.T) {
	flags := Flags{Mode: ModeRegister, AccountCreated: true, RoleAgent: true}

	state, effects, err := Step(StateOnchainKnown, flags, EvFundsSufficient)
	if err != nil {
		t.Fatalf("funds sufficient: %v", err)
	}
	if !reflect.DeepEqual(effects, []Effect{EffectRegisterOnchainAgent}) {
		t.Fatalf("expected agent registration, got %v", effects)
	}

	// Agent fee short: fall back to the regular tier, do not abort.
	state, effects, err = Step(state, flags, EvAgentFeeShort)
	if err != nil {
		t.Fatalf("agent fee short: %v", err)
	}
	if state != StateOnchainKnown {
		t.Fatalf("expected onchain_known, got %s", state)
	}
	if !reflect.DeepEqual(effects, []Effect{EffectRegisterOnchainUser}) {
		t.Fatalf("expected regular registration fallback, got %v", effects)
	}
}

func TestStepChainWriteFailedKeepsAccount(t *testing.T) {
	flags := Flags{Mode: ModeRegister, AccountCreated: true}

	state, effects, err := Step(StateOnchainKnown, flags, EvChainWriteFailed)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if state != StateReconciled {
		t.Fatalf("expected reconciled (degraded), got %s", state)
	}
	for _, effect := range effects {
		if effect == EffectCompensateDelete {
			t.Fatal("non-funds chain failure must not delete the account")
		}
	}
	want := []Effect{EffectFlagPending, EffectWarnDegraded, EffectRouteDashboard}
	if !reflect.DeepEqual(effects, want) {
		t.Fatalf("expected %v, got %v", want, effects)
	}
}

func TestStepRejectsInvalidEvent(t *testing.T) {
	if _, _, err := Step(StateDisconnected, Flags{}, EvChainWriteConfirmed); err == nil {
		t.Fatal("expected error for chain confirmation before connecting")
	}
	if _, _, err := Step(StateReconciled, Flags{}, EvOffchainFound); err == nil {
		t.Fatal("expected error for offchain lookup after reconciliation")
	}
}
