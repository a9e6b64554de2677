// Alert Gateway 비즈니스 로직 정의
//
// 처리 흐름:
//  1. Receive: Alertmanager 웹훅 배치 파싱 → 개별 알림 정규화
//     - 잘못된 항목은 로그 후 건너뜀 (배치 전체는 계속)
//  2. firing: 핑거프린트 기준 dedup 윈도우 내 중복 억제
//  3. resolved: 활성 레코드가 있으면 dedup 해제, 없으면 조용히 폐기
//  4. 수락된 알림은 버퍼 채널로 전달, 워커 풀이 파이프라인 실행
//     - 버퍼가 가득 차면 ErrIntakeFull (back-pressure)

package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/homelab-ir/backend/internal/model"
)

// ErrIntakeFull - intake 버퍼 포화. 핸들러는 503으로 변환한다
var ErrIntakeFull = errors.New("alert intake buffer is full")

// PipelineRunner - Gateway가 수락한 알림을 넘기는 실행기
type PipelineRunner interface {
	Run(ctx context.Context, alert model.Alert) (model.RunResult, error)
}

// IncidentResolver - resolved 알림을 전달받는 자가 치유 종결기 (nil 허용)
type IncidentResolver interface {
	MarkResolved(ctx context.Context, fingerprint string)
}

type GatewayService struct {
	runner   PipelineRunner
	resolver IncidentResolver
	metrics  *Metrics

	dedupWindow time.Duration
	workerCount int

	// fingerprint -> lastSeen (time.Time)
	seen     sync.Map
	inserts  atomic.Int64
	lastSeen atomic.Int64 // UnixNano, 하트비트용

	intake chan model.Alert
}

func NewGatewayService(runner PipelineRunner, resolver IncidentResolver, metrics *Metrics, dedupWindow time.Duration, bufferSize, workerCount int) *GatewayService {
	if dedupWindow <= 0 {
		dedupWindow = 300 * time.Second
	}
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if workerCount <= 0 {
		workerCount = 10
	}
	return &GatewayService{
		runner:      runner,
		resolver:    resolver,
		metrics:     metrics,
		dedupWindow: dedupWindow,
		workerCount: workerCount,
		intake:      make(chan model.Alert, bufferSize),
	}
}

// Start - 워커 풀 기동. ctx 취소 시 모든 워커가 종료된다
func (s *GatewayService) Start(ctx context.Context) {
	for i := 0; i < s.workerCount; i++ {
		go s.worker(ctx, i)
	}
}

func (s *GatewayService) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case alert := <-s.intake:
			result, err := s.runner.Run(ctx, alert)
			if err != nil {
				if errors.Is(err, ErrRunInFlight) {
					log.Printf("Pipeline run skipped, fingerprint already in flight (worker=%d, fingerprint=%s)", id, alert.Fingerprint)
					continue
				}
				log.Printf("Pipeline run failed (worker=%d, alert=%s, fingerprint=%s): %v", id, alert.Name, alert.Fingerprint, err)
				continue
			}
			log.Printf("Pipeline run finished (worker=%d, alert=%s, state=%s, duration=%s)",
				id, alert.Name, result.Outcome.StateName, result.Duration)
		}
	}
}

// Receive - 웹훅 배치 처리. 수락된 알림 수를 반환한다
//
// 항목 단위 오류는 배치를 중단하지 않는다. ErrIntakeFull만 호출자에게
// 오류로 전파된다 (그 시점까지 수락된 건수와 함께)
func (s *GatewayService) Receive(ctx context.Context, webhook model.AlertmanagerWebhook) (int, error) {
	now := time.Now()
	accepted := 0

	for _, raw := range webhook.Alerts {
		alert, err := model.NormalizeAlert(raw)
		if err != nil {
			log.Printf("Dropping malformed alert item: %v", err)
			continue
		}

		if alert.Status == model.StatusResolved {
			// 활성 레코드가 있을 때만 dedup 해제. 없으면 조용히 폐기
			if _, ok := s.seen.LoadAndDelete(alert.Fingerprint); ok {
				log.Printf("Alert resolved, dedup entry cleared (alert=%s, fingerprint=%s)", alert.Name, alert.Fingerprint)
				if s.resolver != nil {
					s.resolver.MarkResolved(ctx, alert.Fingerprint)
				}
			}
			continue
		}

		if last, ok := s.seen.Load(alert.Fingerprint); ok {
			if now.Sub(last.(time.Time)) < s.dedupWindow {
				if s.metrics != nil {
					s.metrics.DuplicatesSuppressed.Inc()
				}
				log.Printf("Duplicate alert suppressed (alert=%s, fingerprint=%s)", alert.Name, alert.Fingerprint)
				continue
			}
		}

		alert.AcceptedAt = now

		select {
		case s.intake <- alert:
			// 큐잉 성공 시에만 lastSeen 기록. 거부된 알림의 재전송은
			// 중복으로 간주하면 안 된다
			s.seen.Store(alert.Fingerprint, now)
			s.lastSeen.Store(now.UnixNano())
			accepted++
			if s.metrics != nil {
				s.metrics.AlertsReceived.Inc()
			}
			if s.inserts.Add(1)%64 == 0 {
				s.prune(now)
			}
		default:
			if s.metrics != nil {
				s.metrics.IntakeRejected.Inc()
			}
			return accepted, ErrIntakeFull
		}
	}

	return accepted, nil
}

// prune - dedup 윈도우를 벗어난 항목 제거 (삽입 64건마다 lazy 수행)
func (s *GatewayService) prune(now time.Time) {
	s.seen.Range(func(key, value any) bool {
		if now.Sub(value.(time.Time)) >= s.dedupWindow {
			s.seen.Delete(key)
		}
		return true
	})
}

// LastAlertAt - 마지막 알림 수락 시각 (헬스체크 하트비트)
func (s *GatewayService) LastAlertAt() *time.Time {
	nano := s.lastSeen.Load()
	if nano == 0 {
		return nil
	}
	t := time.Unix(0, nano)
	return &t
}
