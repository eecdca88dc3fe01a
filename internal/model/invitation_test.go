package model

import (
	"testing"
	"time"
)

func intPtr(n int) *int { return &n }

func TestInvitationState(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Second)

	cases := []struct {
		name string
		inv  Invitation
		want InvitationState
	}{
		{"有效", Invitation{IsActive: true, ExpiresAt: future}, InvitationActive},
		{"撤销优先于过期", Invitation{IsActive: false, ExpiresAt: past}, InvitationRevoked},
		{"过期", Invitation{IsActive: true, ExpiresAt: past}, InvitationExpired},
		{"过期优先于用尽", Invitation{IsActive: true, ExpiresAt: past, MaxUses: intPtr(1), UsageCount: 1}, InvitationExpired},
		{"用尽", Invitation{IsActive: true, ExpiresAt: future, MaxUses: intPtr(2), UsageCount: 2}, InvitationExhausted},
		{"不限次数", Invitation{IsActive: true, ExpiresAt: future, UsageCount: 1000}, InvitationActive},
		{"恰好到期时刻仍有效", Invitation{IsActive: true, ExpiresAt: now}, InvitationActive},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.inv.State(now); got != tc.want {
				t.Errorf("期望 %s，实际 %s", tc.want, got)
			}
		})
	}
}

func TestUsagesRemaining(t *testing.T) {
	unlimited := Invitation{UsageCount: 5}
	if unlimited.UsagesRemaining() != nil {
		t.Error("不限次数时应返回 nil")
	}

	limited := Invitation{MaxUses: intPtr(3), UsageCount: 1}
	if r := limited.UsagesRemaining(); r == nil || *r != 2 {
		t.Errorf("期望剩余 2，实际 %v", r)
	}
}
