package service

import (
	"testing"

	"github.com/homelab-ir/backend/internal/model"
)

func TestRiskTableClassify(t *testing.T) {
	table := DefaultRiskTable()

	tests := []struct {
		action string
		want   model.RiskLevel
	}{
		{"restart_container", model.RiskLow},
		{"clear_cache", model.RiskLow},
		{"reboot_vm", model.RiskMedium},
		{"stop_container", model.RiskMedium},
		{"modify_firewall", model.RiskHigh},
		{"restore_backup", model.RiskHigh},
		// 모르는 액션은 항상 high로 보수 분류
		{"delete_everything", model.RiskHigh},
		{"", model.RiskHigh},
	}

	for _, tt := range tests {
		if got := table.Classify(tt.action); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.action, got, tt.want)
		}
	}
}

func TestRiskTableOverride(t *testing.T) {
	table := DefaultRiskTable()

	table.Override("reboot_vm", model.RiskHigh)
	if got := table.Classify("reboot_vm"); got != model.RiskHigh {
		t.Fatalf("expected overridden level high, got %s", got)
	}

	if !table.Known("reboot_vm") {
		t.Fatal("overridden action should remain known")
	}
	if table.Known("no_such_action") {
		t.Fatal("unknown action reported as known")
	}
}
