// 파이프라인 비즈니스 로직 정의 (Detect → Diagnose → Remediate → Communicate)
//
// 처리 흐름:
//  1. Detect: 모니터링 collaborator로 대상 상태 조회, 알림 확인/강등 판정
//  2. Diagnose: 유사 Incident 검색 + 추론 호출로 근본 원인과 액션 제안
//     - 추론 실패 시 과거 사례 기반 폴백 (score >= 0.8)
//  3. Remediate: 승인 상태 머신에 액션 제출
//  4. Communicate: 결과 알림 + Incident Memory 기록
//     - 항상 실행. 파이프라인 컨텍스트가 죽었어도 새 컨텍스트로 수행
//
// fingerprint당 실행은 최대 1개 (동시 실행 시 ErrRunInFlight)

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/homelab-ir/backend/internal/config"
	"github.com/homelab-ir/backend/internal/model"
)

// ErrRunInFlight - 같은 fingerprint의 파이프라인이 이미 실행 중
var ErrRunInFlight = errors.New("pipeline run already in flight for fingerprint")

// MonitorQuerier - 모니터링 조회 collaborator
type MonitorQuerier interface {
	CheckTarget(ctx context.Context, alert model.Alert) (model.TargetState, error)
}

// Inferencer - 진단 추론 collaborator
type Inferencer interface {
	Infer(ctx context.Context, prompt string) (string, error)
}

// OutcomeNotifier - 파이프라인 결과 전파 collaborator
type OutcomeNotifier interface {
	NotifyOutcome(ctx context.Context, result model.RunResult) error
}

// Approver - Remediate 단계 진입점
type Approver interface {
	Submit(ctx context.Context, alert model.Alert, action model.ProposedAction) model.RemediationOutcome
}

type PipelineService struct {
	monitor   MonitorQuerier
	memory    *MemoryService
	inference Inferencer
	approver  Approver
	notifier  OutcomeNotifier
	metrics   *Metrics

	runTimeout  time.Duration
	callTimeout time.Duration

	// fingerprint -> struct{} (실행 중 배타)
	inFlight sync.Map

	// fingerprint -> pendingIncident (pending 상태로 저장된 기록의 자가 치유 추적)
	pendingIncidents sync.Map

	lastCompleted atomic.Int64 // UnixNano, 하트비트용
}

type pendingIncident struct {
	id        string
	startedAt time.Time
}

func NewPipelineService(
	monitor MonitorQuerier,
	memory *MemoryService,
	inference Inferencer,
	approver Approver,
	notifier OutcomeNotifier,
	metrics *Metrics,
	cfg config.PipelineConfig,
) *PipelineService {
	return &PipelineService{
		monitor:     monitor,
		memory:      memory,
		inference:   inference,
		approver:    approver,
		notifier:    notifier,
		metrics:     metrics,
		runTimeout:  cfg.RunTimeout,
		callTimeout: cfg.CallTimeout,
	}
}

// Run - 파이프라인 1회 실행
//
// Communicate는 실패해도 실행 자체는 성공으로 취급한다. 오류 리턴은
// ErrRunInFlight 경우뿐이며 단계별 실패는 RunResult에 기록된다
func (s *PipelineService) Run(ctx context.Context, alert model.Alert) (model.RunResult, error) {
	if _, loaded := s.inFlight.LoadOrStore(alert.Fingerprint, struct{}{}); loaded {
		if s.metrics != nil {
			s.metrics.RunsInFlightRejected.Inc()
		}
		return model.RunResult{}, ErrRunInFlight
	}
	defer s.inFlight.Delete(alert.Fingerprint)

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	// 해결 소요 시간의 기점은 Gateway 수락 시각 (intake 대기 포함)
	started := alert.AcceptedAt
	if started.IsZero() {
		started = time.Now()
	}
	result := model.RunResult{
		Alert:      alert,
		IncidentID: uuid.NewString(),
		StartedAt:  started,
	}

	log.Printf("Pipeline run started (alert=%s, severity=%s, fingerprint=%s, incident_id=%s)",
		alert.Name, alert.Severity, alert.Fingerprint, result.IncidentID)

	result.Detect = s.detect(runCtx, alert)
	result.Diagnosis = s.diagnose(runCtx, alert, result.Detect)
	result.Outcome = s.remediate(runCtx, alert, result.Diagnosis)
	result.Duration = time.Since(started)

	// Communicate는 runCtx가 이미 죽었어도 반드시 수행
	s.communicate(result)

	s.lastCompleted.Store(time.Now().UnixNano())
	if s.metrics != nil {
		s.metrics.PipelineRuns.WithLabelValues(runResultLabel(result.Outcome)).Inc()
	}

	return result, nil
}

func runResultLabel(outcome model.RemediationOutcome) string {
	switch {
	case outcome.Executed && outcome.Success:
		return "resolved"
	case outcome.State == model.StateRejected:
		return "rejected"
	case outcome.State == model.StateExpired:
		return "expired"
	default:
		return "failed"
	}
}

// detect - 모니터링 조회로 알림 실체 확인
// 조회 실패는 Degraded로만 표시하고 파이프라인은 계속 진행
func (s *PipelineService) detect(ctx context.Context, alert model.Alert) model.DetectResult {
	result := model.DetectResult{
		Confirmed: true,
		Severity:  alert.Severity,
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	state, err := s.monitor.CheckTarget(callCtx, alert)
	if err != nil || !state.Reachable {
		result.Degraded = true
		result.Summary = fmt.Sprintf("monitor unreachable for %s, proceeding with reduced confidence", alert.Component())
		if err != nil {
			log.Printf("Monitor check failed (alert=%s, target=%s): %v", alert.Name, alert.Component(), err)
		}
		return result
	}

	if state.Healthy {
		// 모니터가 정상이라고 하면 오탐 가능성. 확인 해제하되 계속 진행
		result.Confirmed = false
		result.Summary = fmt.Sprintf("monitor reports %s healthy, possible false positive", alert.Component())
		log.Printf("Alert not confirmed by monitor (alert=%s, target=%s)", alert.Name, alert.Component())
		return result
	}

	result.Summary = fmt.Sprintf("monitor confirms %s unhealthy: %s", alert.Component(), state.Detail)
	return result
}

// diagnose - 유사 사례 검색 + 추론 호출
func (s *PipelineService) diagnose(ctx context.Context, alert model.Alert, detect model.DetectResult) model.Diagnosis {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	similar, err := s.memory.FindSimilar(callCtx, alert.QueryText(), 3, "")
	if err != nil {
		log.Printf("Similar incident lookup failed (alert=%s): %v", alert.Name, err)
		similar = nil
	}
	historical := FormatHistoricalContext(similar)

	prompt := buildDiagnosisPrompt(alert, detect, historical)

	inferCtx, cancelInfer := context.WithTimeout(ctx, s.callTimeout)
	defer cancelInfer()

	raw, err := s.inference.Infer(inferCtx, prompt)
	if err != nil {
		log.Printf("Inference failed, falling back to historical remediation (alert=%s): %v", alert.Name, err)
		return fallbackDiagnosis(alert, detect, similar, historical)
	}

	diagnosis := parseDiagnosis(raw, alert)
	diagnosis.HistoricalContext = historical
	if reducedConfidence(detect) {
		diagnosis.Confidence /= 2
	}
	return diagnosis
}

// reducedConfidence - 모니터 접근 불가(Degraded) 또는 모니터가 정상이라고
// 보고한 미확인 알림(오탐 가능성)은 진단 신뢰도를 절반으로 낮춘다
func reducedConfidence(detect model.DetectResult) bool {
	return detect.Degraded || !detect.Confirmed
}

func buildDiagnosisPrompt(alert model.Alert, detect model.DetectResult, historical string) string {
	var b strings.Builder
	b.WriteString("You are diagnosing a homelab infrastructure alert. Respond with exactly four lines:\n")
	b.WriteString("ROOT_CAUSE: <one sentence hypothesis>\n")
	b.WriteString("ACTION: <one of: start_container, restart_container, restart_service, clear_cache, prune_disk, notify_only, stop_container, restart_vm, reboot_vm, stop_vm, scale_service, modify_firewall, modify_network, update_dns, restore_backup, shutdown_host>\n")
	b.WriteString("TARGET: <resource the action applies to>\n")
	b.WriteString("CONFIDENCE: <0.0 to 1.0>\n\n")
	b.WriteString(fmt.Sprintf("Alert: %s (severity=%s)\n", alert.Name, alert.Severity))
	b.WriteString(fmt.Sprintf("Component: %s\n", alert.Component()))
	if desc := alert.Description(); desc != "" {
		b.WriteString(fmt.Sprintf("Description: %s\n", desc))
	}
	b.WriteString(fmt.Sprintf("Detection: %s\n\n", detect.Summary))
	b.WriteString("Similar past incidents:\n")
	b.WriteString(historical)
	return b.String()
}

// parseDiagnosis - 추론 응답의 접두사 라인 파싱
// 형식을 벗어난 라인은 무시. ACTION이 없으면 notify_only로 보수 처리
func parseDiagnosis(raw string, alert model.Alert) model.Diagnosis {
	diagnosis := model.Diagnosis{
		RootCauseHypothesis: "unknown",
		Action: model.ProposedAction{
			Type:   "notify_only",
			Target: alert.Component(),
		},
		Confidence: 0.3,
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "ROOT_CAUSE:"):
			if v := strings.TrimSpace(strings.TrimPrefix(line, "ROOT_CAUSE:")); v != "" {
				diagnosis.RootCauseHypothesis = v
			}
		case strings.HasPrefix(line, "ACTION:"):
			if v := strings.TrimSpace(strings.TrimPrefix(line, "ACTION:")); v != "" {
				diagnosis.Action.Type = v
			}
		case strings.HasPrefix(line, "TARGET:"):
			if v := strings.TrimSpace(strings.TrimPrefix(line, "TARGET:")); v != "" {
				diagnosis.Action.Target = v
			}
		case strings.HasPrefix(line, "CONFIDENCE:"):
			v := strings.TrimSpace(strings.TrimPrefix(line, "CONFIDENCE:"))
			var conf float64
			if _, err := fmt.Sscanf(v, "%f", &conf); err == nil && conf >= 0 && conf <= 1 {
				diagnosis.Confidence = conf
			}
		}
	}

	diagnosis.Action.Summary = fmt.Sprintf("%s on %s (%s)",
		diagnosis.Action.Type, diagnosis.Action.Target, diagnosis.RootCauseHypothesis)
	return diagnosis
}

// fallbackDiagnosis - 추론 불가 시 과거 사례 기반 폴백
// 최상위 유사 사례의 score가 0.8 이상이고 remediation 기록이 있으면 재사용
func fallbackDiagnosis(alert model.Alert, detect model.DetectResult, similar []model.SimilarIncident, historical string) model.Diagnosis {
	diagnosis := model.Diagnosis{
		RootCauseHypothesis: "unknown (inference unavailable)",
		HistoricalContext:   historical,
	}

	if len(similar) > 0 && similar[0].Score >= 0.8 &&
		similar[0].Record.RemediationTaken != nil && *similar[0].Record.RemediationTaken != "" {
		top := similar[0]
		fields := strings.Fields(*top.Record.RemediationTaken)
		action := model.ProposedAction{Type: fields[0], Target: alert.Component()}
		if len(fields) > 1 {
			action.Target = fields[1]
		}
		action.Summary = fmt.Sprintf("%s on %s (reusing remediation from incident %s)",
			action.Type, action.Target, top.Record.ID)

		diagnosis.RootCauseHypothesis = fmt.Sprintf("likely recurrence of incident %s", top.Record.ID)
		if top.Record.RootCause != nil && *top.Record.RootCause != "" {
			diagnosis.RootCauseHypothesis = *top.Record.RootCause
		}
		diagnosis.Action = action
		diagnosis.Confidence = top.Score * 0.5
	} else {
		diagnosis.Action = model.ProposedAction{
			Type:    "",
			Target:  alert.Component(),
			Summary: "no action proposed",
		}
		diagnosis.Confidence = 0
	}

	if reducedConfidence(detect) {
		diagnosis.Confidence /= 2
	}
	return diagnosis
}

// remediate - 승인 상태 머신에 제출. 액션이 비어 있으면 실행 생략
func (s *PipelineService) remediate(ctx context.Context, alert model.Alert, diagnosis model.Diagnosis) model.RemediationOutcome {
	if diagnosis.Action.Type == "" || diagnosis.Action.Type == "notify_only" {
		return model.RemediationOutcome{
			State:     model.StateProposed,
			StateName: model.StateProposed.String(),
			Executed:  false,
			Detail:    "no remediation executed: " + diagnosis.Action.Summary,
		}
	}
	return s.approver.Submit(ctx, alert, diagnosis.Action)
}

// communicate - 결과 전파 + Incident Memory 기록
// 파이프라인 예산과 무관하게 새 컨텍스트로 수행
func (s *PipelineService) communicate(result model.RunResult) {
	ctx, cancel := context.WithTimeout(context.Background(), s.callTimeout)
	defer cancel()

	if err := s.notifier.NotifyOutcome(ctx, result); err != nil {
		log.Printf("Outcome notification failed (alert=%s, incident_id=%s): %v",
			result.Alert.Name, result.IncidentID, err)
	}

	rec := recordFromRun(result)
	if err := s.memory.Store(ctx, rec); err != nil {
		// 기록 실패는 경고만. 파이프라인 결과에는 영향을 주지 않음
		log.Printf("Incident record store failed (incident_id=%s): %v", result.IncidentID, err)
		return
	}

	if rec.ResolutionStatus == model.ResolutionPending {
		s.pendingIncidents.Store(result.Alert.Fingerprint, pendingIncident{
			id:        rec.ID,
			startedAt: result.StartedAt,
		})
	} else {
		s.pendingIncidents.Delete(result.Alert.Fingerprint)
	}
}

// MarkResolved - resolved 알림 수신 시 pending 기록을 자가 치유로 종결
// 해당 fingerprint의 pending 기록이 없으면 no-op
func (s *PipelineService) MarkResolved(ctx context.Context, fingerprint string) {
	value, ok := s.pendingIncidents.LoadAndDelete(fingerprint)
	if !ok {
		return
	}
	pending := value.(pendingIncident)

	seconds := int(time.Since(pending.startedAt).Seconds())
	if err := s.memory.Finalize(ctx, pending.id, model.ResolutionResolved, seconds); err != nil {
		log.Printf("Failed to finalize self-healed incident (incident_id=%s): %v", pending.id, err)
		return
	}
	log.Printf("Incident finalized as self-healed (incident_id=%s, fingerprint=%s, resolution=%ds)",
		pending.id, fingerprint, seconds)
}

// recordFromRun - 실행 결과를 Incident 레코드로 변환
func recordFromRun(result model.RunResult) model.IncidentRecord {
	rec := model.IncidentRecord{
		ID:          result.IncidentID,
		AlertName:   result.Alert.Name,
		Description: result.Alert.Description(),
		Severity:    result.Alert.Severity,
		CreatedAt:   result.StartedAt,
	}

	if result.Diagnosis.RootCauseHypothesis != "" {
		rootCause := result.Diagnosis.RootCauseHypothesis
		rec.RootCause = &rootCause
	}

	if result.Outcome.Executed {
		remediation := result.Diagnosis.Action.Type + " " + result.Diagnosis.Action.Target
		rec.RemediationTaken = &remediation
	}

	// 터미널 결과(실행 성공/실패, 거부, 만료)는 즉시 종결 상태로 기록.
	// pending은 실행까지 가지 않은 알림성 결과에만 남는다
	terminalSeconds := func() {
		seconds := int(result.Duration.Seconds())
		rec.ResolutionSeconds = &seconds
	}
	failWith := func(reason string) {
		rec.ResolutionStatus = model.ResolutionFailed
		rec.FailureReason = &reason
		terminalSeconds()
	}

	switch {
	case result.Outcome.State == model.StateExecuted && result.Outcome.Success:
		rec.ResolutionStatus = model.ResolutionResolved
		terminalSeconds()
	case result.Outcome.Executed:
		reason := result.Outcome.Detail
		if reason == "" {
			reason = "remediation execution failed"
		}
		failWith(reason)
	case result.Outcome.State == model.StateExpired:
		reason := result.Outcome.Detail
		if reason == "" {
			reason = "approval timed out"
		}
		failWith(reason)
	case result.Outcome.State == model.StateRejected:
		reason := result.Outcome.Detail
		if reason == "" {
			reason = "rejected by operator"
		}
		failWith(reason)
	default:
		rec.ResolutionStatus = model.ResolutionPending
	}

	return rec
}

// LastCompletedAt - 마지막 파이프라인 완료 시각 (헬스체크 하트비트)
func (s *PipelineService) LastCompletedAt() *time.Time {
	nano := s.lastCompleted.Load()
	if nano == 0 {
		return nil
	}
	t := time.Unix(0, nano)
	return &t
}
