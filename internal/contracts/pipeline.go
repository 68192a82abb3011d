package contracts

// Pipeline Stage 정의 (SSOT)
// 모든 로그와 감사 기록에서 이 상수를 사용해야 함
//
// 실행 흐름 (1 run = 2 phase batch):
//   Phase 1: S1 (collect) → S2 (normalize)   ── barrier ──
//   Phase 2: S3 (factors) → S4 (composite) → S5 (validate) → S6 (write)  [per entity, parallel]

// Stage represents a pipeline stage
type Stage string

const (
	// StageUniverse S1: 유니버스 스냅샷 수집
	// 위치: internal/s1_universe/
	StageUniverse Stage = "S1_UNIVERSE"

	// StageNormalize S2: 횡단면 정규화 테이블 생성
	// 위치: internal/s2_signals/normalize.go
	StageNormalize Stage = "S2_NORMALIZE"

	// StageFactors S3: 6개 팩터 계산
	// 위치: internal/s2_signals/
	StageFactors Stage = "S3_FACTORS"

	// StageComposite S4: 종합 점수, 신뢰도, 추세
	// 위치: internal/selection/aggregator.go
	StageComposite Stage = "S4_COMPOSITE"

	// StageValidate S5: 결과 검증
	// 위치: internal/selection/validator.go
	StageValidate Stage = "S5_VALIDATE"

	// StageWrite S6: 저장
	// 위치: internal/selection/repository.go
	StageWrite Stage = "S6_WRITE"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "S1")
func (s Stage) ShortName() string {
	if len(s) < 2 {
		return "UNKNOWN"
	}
	for _, stage := range AllStages() {
		if stage == s {
			return string(s[:2])
		}
	}
	return "UNKNOWN"
}

// IsRunFatal reports whether a failure at this stage aborts the whole run.
// Only Phase 1 is fatal: normalization needs the complete cross-section.
func (s Stage) IsRunFatal() bool {
	return s == StageUniverse || s == StageNormalize
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StageUniverse,
		StageNormalize,
		StageFactors,
		StageComposite,
		StageValidate,
		StageWrite,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}
