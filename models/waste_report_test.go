package models

import (
	"errors"
	"testing"
)

func approvedAgent(id string) *Account {
	return &Account{ID: id, Role: RoleAgent, AgentStatus: AgentApproved}
}

func TestGuardCollect(t *testing.T) {
	agentID := "agent-1"
	tests := []struct {
		name   string
		report WasteReport
		actor  *Account
		want   error
	}{
		{
			"approved agent collects",
			WasteReport{OwnerID: "owner-1", Status: StatusReported},
			approvedAgent(agentID),
			nil,
		},
		{
			"regular user cannot collect",
			WasteReport{OwnerID: "owner-1", Status: StatusReported},
			&Account{ID: "user-1", Role: RoleRegular},
			ErrAgentNotApproved,
		},
		{
			"pending agent cannot collect",
			WasteReport{OwnerID: "owner-1", Status: StatusReported},
			&Account{ID: agentID, Role: RoleAgent, AgentStatus: AgentPending},
			ErrAgentNotApproved,
		},
		{
			"owner cannot collect own report",
			WasteReport{OwnerID: agentID, Status: StatusReported},
			approvedAgent(agentID),
			ErrOwnerCollect,
		},
		{
			"already collected",
			WasteReport{OwnerID: "owner-1", Status: StatusCollected},
			approvedAgent(agentID),
			ErrNotCollectable,
		},
		{
			"already processed",
			WasteReport{OwnerID: "owner-1", Status: StatusProcessed},
			approvedAgent(agentID),
			ErrNotCollectable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.report.GuardCollect(tt.actor); !errors.Is(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestGuardProcess(t *testing.T) {
	agentID := "agent-1"
	otherID := "agent-2"
	tests := []struct {
		name   string
		report WasteReport
		actor  *Account
		want   error
	}{
		{
			"collecting agent processes",
			WasteReport{OwnerID: "owner-1", Status: StatusCollected, AssignedAgentID: &agentID},
			approvedAgent(agentID),
			nil,
		},
		{
			"different agent cannot process",
			WasteReport{OwnerID: "owner-1", Status: StatusCollected, AssignedAgentID: &agentID},
			approvedAgent(otherID),
			ErrNotReportAgent,
		},
		{
			"not collected yet",
			WasteReport{OwnerID: "owner-1", Status: StatusReported},
			approvedAgent(agentID),
			ErrNotProcessable,
		},
		{
			"already processed",
			WasteReport{OwnerID: "owner-1", Status: StatusProcessed, AssignedAgentID: &agentID},
			approvedAgent(agentID),
			ErrNotProcessable,
		},
		{
			"regular user cannot process",
			WasteReport{OwnerID: "owner-1", Status: StatusCollected, AssignedAgentID: &agentID},
			&Account{ID: agentID, Role: RoleRegular},
			ErrAgentNotApproved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.report.GuardProcess(tt.actor); !errors.Is(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestValidPlasticType(t *testing.T) {
	for _, valid := range []PlasticType{PlasticPET, PlasticHDPE, PlasticPVC, PlasticLDPE, PlasticPP, PlasticPS, PlasticOther} {
		if !ValidPlasticType(valid) {
			t.Fatalf("%s should be valid", valid)
		}
	}
	if ValidPlasticType("styrofoam") {
		t.Fatal("unknown type accepted")
	}
	if ValidPlasticType("") {
		t.Fatal("empty type accepted")
	}
}
