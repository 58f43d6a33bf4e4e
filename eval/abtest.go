package eval

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/evrec/evrec/core"
)

// A/B 测试状态生命周期：draft → ready → running → paused → completed。
const (
	TestStatusDraft     = "draft"
	TestStatusReady     = "ready"
	TestStatusRunning   = "running"
	TestStatusPaused    = "paused"
	TestStatusCompleted = "completed"
)

// ABTestConfig 是一个 A/B 测试的配置。
type ABTestConfig struct {
	TestID string
	Name   string

	// Variants 是变体名 → 流量配比，总和必须为 1（±0.01）。
	Variants map[string]float64

	// MinSampleSize 调用方声明的最小样本量；低于功效计算的
	// 推荐值只告警不拒绝。
	MinSampleSize int

	// Significance 显著性水平 α（默认 0.05）。
	Significance float64

	// Power 统计功效 1-β（默认 0.8）。
	Power float64
}

// Record 是一条落在某个变体下的交互记录。
type Record struct {
	ID        string
	UserID    string
	Converted bool
	Timestamp time.Time
	Metadata  map[string]any
}

// VariantResult 是单个变体的分析结果。
type VariantResult struct {
	Samples        int
	Conversions    int
	ConversionRate float64

	// SubMetrics 是转化率的固定比例占位（precision/recall 等字段名
	// 只是沿用报表格式），不是真实测量。
	SubMetrics map[string]float64
}

// ABTestResult 是一次测试分析。
type ABTestResult struct {
	TestID   string
	Status   string
	Variants map[string]*VariantResult

	// Significant 只在总样本 > 100 时为 true，不是真正的假设检验。
	Significant bool

	// Placeholder 恒为 true：SubMetrics 与 Significant 都是占位契约。
	Placeholder bool
}

type abTest struct {
	config  ABTestConfig
	status  string
	records map[string][]*Record // variant → records
}

// ABTester 是进程内 A/B 测试注册表：确定性分流、交互记录、
// 占位分析。注册表由互斥锁保护。
type ABTester struct {
	Log *logrus.Logger

	mu    sync.Mutex
	tests map[string]*abTest
}

// NewABTester 创建 A/B 测试注册表。
func NewABTester(log *logrus.Logger) *ABTester {
	if log == nil {
		log = logrus.New()
	}
	return &ABTester{
		Log:   log,
		tests: make(map[string]*abTest),
	}
}

// CreateTest 注册一个新测试（初始状态 draft）。
//
// test_id 重复或配比总和偏离 1 超过 0.01 返回 INVALID_INPUT。
// 功效计算（基线转化 10%，最小可检测效应 0.1）得到的推荐样本量
// 高于调用方声明值时记告警，不拒绝。
func (t *ABTester) CreateTest(cfg ABTestConfig) error {
	if cfg.TestID == "" || len(cfg.Variants) == 0 {
		return core.NewDomainError(core.ModuleEval, core.ErrorCodeInvalidInput, "test id and variants are required")
	}
	var total float64
	for _, alloc := range cfg.Variants {
		total += alloc
	}
	if math.Abs(total-1.0) > 0.01 {
		return core.NewDomainError(core.ModuleEval, core.ErrorCodeInvalidInput,
			"traffic allocation must sum to 1.0, got "+strconv.FormatFloat(total, 'f', 4, 64))
	}
	if cfg.Significance <= 0 || cfg.Significance >= 1 {
		cfg.Significance = 0.05
	}
	if cfg.Power <= 0 || cfg.Power >= 1 {
		cfg.Power = 0.8
	}

	recommended := minSampleSize(0.1, 0.1, cfg.Significance, cfg.Power)
	if cfg.MinSampleSize < recommended {
		t.Log.WithFields(logrus.Fields{
			"test_id":     cfg.TestID,
			"stated":      cfg.MinSampleSize,
			"recommended": recommended,
		}).Warn("abtest: stated min sample size below power-calculated recommendation")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.tests[cfg.TestID]; exists {
		return core.NewDomainError(core.ModuleEval, core.ErrorCodeInvalidInput, "test already registered: "+cfg.TestID)
	}
	t.tests[cfg.TestID] = &abTest{
		config:  cfg,
		status:  TestStatusDraft,
		records: make(map[string][]*Record),
	}
	return nil
}

// minSampleSize 是标准的双比例功效计算（每组）。
func minSampleSize(baseline, mde, significance, power float64) int {
	p1 := baseline
	p2 := baseline + mde
	zAlpha := zQuantile(1 - significance/2)
	zBeta := zQuantile(power)
	numerator := math.Pow(zAlpha+zBeta, 2) * (p1*(1-p1) + p2*(1-p2))
	return int(math.Ceil(numerator / math.Pow(p2-p1, 2)))
}

// AssignVariant 确定性分流：MD5("{testID}:{userID}") 前 8 个十六进制
// 字符取整、模 10000 归一到 [0,1)，落进按变体名排序的累积配比区间。
// 同一 (test, user) 永远得到同一变体；浮点间隙回落到首个变体。
func (t *ABTester) AssignVariant(testID, userID string) (string, error) {
	t.mu.Lock()
	test, ok := t.tests[testID]
	t.mu.Unlock()
	if !ok {
		return "", core.NewDomainError(core.ModuleEval, core.ErrorCodeNotFound, "test not found: "+testID)
	}

	sum := md5.Sum([]byte(testID + ":" + userID))
	hexStr := hex.EncodeToString(sum[:])[:8]
	n, err := strconv.ParseUint(hexStr, 16, 64)
	if err != nil {
		return "", core.NewDomainError(core.ModuleEval, core.ErrorCodeInternalError, "hash parse failed")
	}
	point := float64(n%10000) / 10000

	// 变体名排序后的累积区间，保证跨进程可复现
	names := make([]string, 0, len(test.config.Variants))
	for name := range test.config.Variants {
		names = append(names, name)
	}
	sort.Strings(names)

	var cumulative float64
	for _, name := range names {
		cumulative += test.config.Variants[name]
		if point < cumulative {
			return name, nil
		}
	}
	return names[0], nil
}

// Start / Pause / Complete 推进测试状态。
func (t *ABTester) Start(testID string) error {
	return t.transition(testID, TestStatusRunning, TestStatusDraft, TestStatusReady, TestStatusPaused)
}

func (t *ABTester) Pause(testID string) error {
	return t.transition(testID, TestStatusPaused, TestStatusRunning)
}

func (t *ABTester) Complete(testID string) error {
	return t.transition(testID, TestStatusCompleted, TestStatusRunning, TestStatusPaused)
}

func (t *ABTester) transition(testID, to string, from ...string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	test, ok := t.tests[testID]
	if !ok {
		return core.NewDomainError(core.ModuleEval, core.ErrorCodeNotFound, "test not found: "+testID)
	}
	for _, s := range from {
		if test.status == s {
			test.status = to
			return nil
		}
	}
	return core.NewDomainError(core.ModuleEval, core.ErrorCodeInvalidInput,
		"invalid status transition: "+test.status+" -> "+to)
}

// RecordInteraction 把一条交互记到用户分流到的变体下。
func (t *ABTester) RecordInteraction(testID, userID string, converted bool, metadata map[string]any) error {
	variant, err := t.AssignVariant(testID, userID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	test, ok := t.tests[testID]
	if !ok {
		return core.NewDomainError(core.ModuleEval, core.ErrorCodeNotFound, "test not found: "+testID)
	}
	test.records[variant] = append(test.records[variant], &Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		Converted: converted,
		Timestamp: time.Now(),
		Metadata:  metadata,
	})
	return nil
}

// AnalyzeTest 按变体汇总转化率。
//
// SubMetrics 是转化率的固定比例合成值，Significant 只是样本量阈值
// 判断，两者都是显式的占位契约（Placeholder 恒为 true）。
func (t *ABTester) AnalyzeTest(testID string) (*ABTestResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	test, ok := t.tests[testID]
	if !ok {
		return nil, core.NewDomainError(core.ModuleEval, core.ErrorCodeNotFound, "test not found: "+testID)
	}

	result := &ABTestResult{
		TestID:      testID,
		Status:      test.status,
		Variants:    make(map[string]*VariantResult, len(test.config.Variants)),
		Placeholder: true,
	}

	totalSamples := 0
	for name := range test.config.Variants {
		records := test.records[name]
		conversions := 0
		for _, r := range records {
			if r.Converted {
				conversions++
			}
		}
		rate := 0.0
		if len(records) > 0 {
			rate = float64(conversions) / float64(len(records))
		}
		result.Variants[name] = &VariantResult{
			Samples:        len(records),
			Conversions:    conversions,
			ConversionRate: rate,
			SubMetrics: map[string]float64{
				"precision":    rate * 0.8,
				"recall":       rate * 0.6,
				"satisfaction": rate * 0.9,
			},
		}
		totalSamples += len(records)
	}

	result.Significant = totalSamples > 100
	return result, nil
}
