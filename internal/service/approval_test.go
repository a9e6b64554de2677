package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/homelab-ir/backend/internal/config"
	"github.com/homelab-ir/backend/internal/model"
)

type fakeExecutor struct {
	mu      sync.Mutex
	calls   []model.ProposedAction
	success bool
	err     error
}

func (f *fakeExecutor) Execute(ctx context.Context, action model.ProposedAction) (model.ExecutionResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, action)
	f.mu.Unlock()
	if f.err != nil {
		return model.ExecutionResult{}, f.err
	}
	return model.ExecutionResult{Success: f.success, Output: "done"}, nil
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeApprovalNotifier struct {
	mu      sync.Mutex
	pending []model.PendingAction
}

func (f *fakeApprovalNotifier) NotifyApprovalRequest(ctx context.Context, pending model.PendingAction, alert model.Alert) error {
	f.mu.Lock()
	f.pending = append(f.pending, pending)
	f.mu.Unlock()
	return nil
}

func (f *fakeApprovalNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

func (f *fakeApprovalNotifier) last() model.PendingAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending[len(f.pending)-1]
}

func newTestApproval(executor *fakeExecutor, notifier *fakeApprovalNotifier, ttl time.Duration) *ApprovalService {
	return NewApprovalService(DefaultRiskTable(), executor, notifier, config.ApprovalConfig{
		TTL:           ttl,
		SweepInterval: time.Hour,
	})
}

func testAlert(name string) model.Alert {
	return model.Alert{
		Fingerprint: "fp-" + name,
		Name:        name,
		Severity:    model.SeverityCritical,
		Labels:      map[string]string{"alertname": name, "container": "jellyfin"},
		Annotations: map[string]string{"description": name + " detected"},
		Status:      model.StatusFiring,
		StartedAt:   time.Now(),
	}
}

func TestSubmitLowRiskAutoExecutes(t *testing.T) {
	executor := &fakeExecutor{success: true}
	notifier := &fakeApprovalNotifier{}
	svc := newTestApproval(executor, notifier, time.Minute)

	outcome := svc.Submit(context.Background(), testAlert("ContainerDown"), model.ProposedAction{
		Type:   "restart_container",
		Target: "jellyfin",
	})

	if outcome.State != model.StateExecuted || !outcome.Success {
		t.Fatalf("expected executed success, got %+v", outcome)
	}
	if executor.callCount() != 1 {
		t.Fatalf("expected 1 execution, got %d", executor.callCount())
	}
	if notifier.count() != 0 {
		t.Fatal("low risk action must not generate an approval request")
	}
	if len(svc.Pending()) != 0 {
		t.Fatal("low risk action must not create a pending entry")
	}
}

func TestSubmitMediumRiskWaitsForApproval(t *testing.T) {
	executor := &fakeExecutor{success: true}
	notifier := &fakeApprovalNotifier{}
	svc := newTestApproval(executor, notifier, time.Minute)

	done := make(chan model.RemediationOutcome, 1)
	go func() {
		done <- svc.Submit(context.Background(), testAlert("VMStuck"), model.ProposedAction{
			Type:   "reboot_vm",
			Target: "vm-101",
		})
	}()

	pending := waitForPending(t, svc)
	if pending.RiskLevel != model.RiskMedium {
		t.Fatalf("expected medium risk, got %s", pending.RiskLevel)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected 1 approval request, got %d", notifier.count())
	}

	if _, err := svc.Resolve(pending.ConfirmationID, true, "admin"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	outcome := <-done
	if outcome.State != model.StateExecuted || !outcome.Success {
		t.Fatalf("expected executed success, got %+v", outcome)
	}
	if outcome.ResolvedBy != "admin" {
		t.Fatalf("expected resolver admin, got %s", outcome.ResolvedBy)
	}
	if executor.callCount() != 1 {
		t.Fatalf("expected 1 execution, got %d", executor.callCount())
	}
}

func TestResolveRejectSkipsExecution(t *testing.T) {
	executor := &fakeExecutor{success: true}
	notifier := &fakeApprovalNotifier{}
	svc := newTestApproval(executor, notifier, time.Minute)

	done := make(chan model.RemediationOutcome, 1)
	go func() {
		done <- svc.Submit(context.Background(), testAlert("FirewallDrift"), model.ProposedAction{
			Type:   "modify_firewall",
			Target: "gateway",
		})
	}()

	pending := waitForPending(t, svc)
	if _, err := svc.Resolve(pending.ConfirmationID, false, "admin"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	outcome := <-done
	if outcome.State != model.StateRejected {
		t.Fatalf("expected rejected, got %s", outcome.StateName)
	}
	if executor.callCount() != 0 {
		t.Fatal("rejected action must not execute")
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	executor := &fakeExecutor{success: true}
	notifier := &fakeApprovalNotifier{}
	svc := newTestApproval(executor, notifier, time.Minute)

	done := make(chan model.RemediationOutcome, 1)
	go func() {
		done <- svc.Submit(context.Background(), testAlert("VMStuck"), model.ProposedAction{
			Type:   "reboot_vm",
			Target: "vm-101",
		})
	}()

	pending := waitForPending(t, svc)
	if _, err := svc.Resolve(pending.ConfirmationID, true, "admin"); err != nil {
		t.Fatalf("first approve failed: %v", err)
	}
	<-done

	// 같은 confirmation에 대한 두 번째 신호는 no-op
	if _, err := svc.Resolve(pending.ConfirmationID, false, "admin"); err != ErrUnknownConfirmation {
		t.Fatalf("expected ErrUnknownConfirmation after terminal state, got %v", err)
	}
	if executor.callCount() != 1 {
		t.Fatalf("duplicate signal must not re-execute, got %d calls", executor.callCount())
	}
}

func TestResolveUnknownConfirmation(t *testing.T) {
	svc := newTestApproval(&fakeExecutor{}, &fakeApprovalNotifier{}, time.Minute)

	if _, err := svc.Resolve("no-such-id", true, "admin"); err != ErrUnknownConfirmation {
		t.Fatalf("expected ErrUnknownConfirmation, got %v", err)
	}
}

func TestExpiryWinsOverLateApproval(t *testing.T) {
	executor := &fakeExecutor{success: true}
	notifier := &fakeApprovalNotifier{}
	svc := newTestApproval(executor, notifier, 10*time.Millisecond)

	done := make(chan model.RemediationOutcome, 1)
	go func() {
		done <- svc.Submit(context.Background(), testAlert("VMStuck"), model.ProposedAction{
			Type:   "reboot_vm",
			Target: "vm-101",
		})
	}()

	pending := waitForPending(t, svc)
	time.Sleep(20 * time.Millisecond)

	if n := svc.SweepExpired(); n != 1 {
		t.Fatalf("expected 1 expiry, got %d", n)
	}

	outcome := <-done
	if outcome.State != model.StateExpired {
		t.Fatalf("expected expired, got %s", outcome.StateName)
	}

	// 만료 이후의 늦은 승인은 실행되면 안 됨
	svc.Resolve(pending.ConfirmationID, true, "admin")
	if executor.callCount() != 0 {
		t.Fatal("late approval after expiry must not execute")
	}
}

func TestConcurrentSweepsExpireExactlyOnce(t *testing.T) {
	executor := &fakeExecutor{success: true}
	notifier := &fakeApprovalNotifier{}
	svc := newTestApproval(executor, notifier, time.Nanosecond)

	done := make(chan model.RemediationOutcome, 1)
	go func() {
		done <- svc.Submit(context.Background(), testAlert("VMStuck"), model.ProposedAction{
			Type:   "reboot_vm",
			Target: "vm-101",
		})
	}()
	waitForPending(t, svc)

	var wg sync.WaitGroup
	total := make(chan int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			total <- svc.SweepExpired()
		}()
	}
	wg.Wait()
	close(total)

	sum := 0
	for n := range total {
		sum += n
	}
	if sum != 1 {
		t.Fatalf("expected exactly one expiry across concurrent sweeps, got %d", sum)
	}
	<-done
}

func TestDuplicateProposalMergesPerFingerprint(t *testing.T) {
	executor := &fakeExecutor{success: true}
	notifier := &fakeApprovalNotifier{}
	svc := newTestApproval(executor, notifier, time.Minute)

	alert := testAlert("VMStuck")
	action := model.ProposedAction{Type: "reboot_vm", Target: "vm-101"}

	outcomes := make(chan model.RemediationOutcome, 2)
	go func() { outcomes <- svc.Submit(context.Background(), alert, action) }()
	pending := waitForPending(t, svc)

	// 첫 제안이 대기 중일 때 들어온 두 번째 제안은 병합되어야 함
	go func() { outcomes <- svc.Submit(context.Background(), alert, action) }()
	waitForNotifications(t, notifier, 1)
	time.Sleep(20 * time.Millisecond)

	if got := len(svc.Pending()); got != 1 {
		t.Fatalf("expected a single pending entry per fingerprint, got %d", got)
	}

	if _, err := svc.Resolve(pending.ConfirmationID, true, "admin"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	// 두 대기자 모두 같은 결과를 받아야 함
	first := <-outcomes
	second := <-outcomes
	if first.State != model.StateExecuted || second.State != model.StateExecuted {
		t.Fatalf("both waiters should observe execution, got %s and %s", first.StateName, second.StateName)
	}
	if executor.callCount() != 1 {
		t.Fatalf("merged proposal must execute once, got %d", executor.callCount())
	}
}

func TestSubmitContextCancelForcesExpiry(t *testing.T) {
	executor := &fakeExecutor{success: true}
	notifier := &fakeApprovalNotifier{}
	svc := newTestApproval(executor, notifier, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan model.RemediationOutcome, 1)
	go func() {
		done <- svc.Submit(ctx, testAlert("VMStuck"), model.ProposedAction{
			Type:   "reboot_vm",
			Target: "vm-101",
		})
	}()

	waitForPending(t, svc)
	cancel()

	outcome := <-done
	if outcome.State != model.StateExpired {
		t.Fatalf("expected expiry on run budget exhaustion, got %s", outcome.StateName)
	}
	if executor.callCount() != 0 {
		t.Fatal("expired action must not execute")
	}
}

func waitForNotifications(t *testing.T, notifier *fakeApprovalNotifier, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if notifier.count() >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d notification(s)", want)
}

func waitForPending(t *testing.T, svc *ApprovalService) model.PendingAction {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pending := svc.Pending(); len(pending) > 0 {
			return pending[0]
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for a pending action")
	return model.PendingAction{}
}
