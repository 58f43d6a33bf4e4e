package eval

import (
	"fmt"
	"math"
	"testing"

	"github.com/evrec/evrec/core"
)

func newTester() *ABTester {
	return NewABTester(quietLog())
}

func validConfig(testID string) ABTestConfig {
	return ABTestConfig{
		TestID:        testID,
		Name:          "test",
		Variants:      map[string]float64{"control": 0.5, "treatment": 0.5},
		MinSampleSize: 500,
	}
}

func TestCreateTestValidation(t *testing.T) {
	tester := newTester()

	if err := tester.CreateTest(validConfig("t1")); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	// 重复注册
	err := tester.CreateTest(validConfig("t1"))
	if domainErr := core.GetDomainError(err); domainErr == nil || domainErr.Code != core.ErrorCodeInvalidInput {
		t.Errorf("duplicate test err = %v, want INVALID_INPUT", err)
	}

	// 配比总和校验（±0.01 容差）
	cases := []struct {
		control, treatment float64
		wantErr            bool
	}{
		{0.45, 0.45, true},  // 0.90
		{0.55, 0.55, true},  // 1.10
		{0.5, 0.499, false}, // 0.999 在容差内
		{0.5, 0.5, false},
	}
	for i, tt := range cases {
		cfg := validConfig(fmt.Sprintf("alloc-%d", i))
		cfg.Variants = map[string]float64{"control": tt.control, "treatment": tt.treatment}
		err := tester.CreateTest(cfg)
		if tt.wantErr && err == nil {
			t.Errorf("allocation %f+%f accepted, want rejection", tt.control, tt.treatment)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("allocation %f+%f rejected: %v", tt.control, tt.treatment, err)
		}
	}
}

func TestAssignVariantDeterministic(t *testing.T) {
	tester := newTester()
	if err := tester.CreateTest(validConfig("t1")); err != nil {
		t.Fatalf("CreateTest: %v", err)
	}

	first, err := tester.AssignVariant("t1", "alice")
	if err != nil {
		t.Fatalf("AssignVariant: %v", err)
	}
	for i := 0; i < 100; i++ {
		got, err := tester.AssignVariant("t1", "alice")
		if err != nil {
			t.Fatalf("AssignVariant: %v", err)
		}
		if got != first {
			t.Fatalf("assignment not deterministic: %s then %s", first, got)
		}
	}
}

func TestAssignVariantDistribution(t *testing.T) {
	tester := newTester()
	if err := tester.CreateTest(validConfig("t1")); err != nil {
		t.Fatalf("CreateTest: %v", err)
	}

	counts := map[string]int{}
	const n = 10000
	for i := 0; i < n; i++ {
		variant, err := tester.AssignVariant("t1", fmt.Sprintf("user-%d", i))
		if err != nil {
			t.Fatalf("AssignVariant: %v", err)
		}
		counts[variant]++
	}

	if len(counts) != 2 {
		t.Fatalf("variants hit = %v, want both", counts)
	}
	// 50/50 配比下，1 万用户偏差不应超过 5 个百分点
	ratio := float64(counts["control"]) / n
	if math.Abs(ratio-0.5) > 0.05 {
		t.Errorf("control ratio = %f, want ~0.5", ratio)
	}
}

func TestAssignVariantUnknownTest(t *testing.T) {
	tester := newTester()
	_, err := tester.AssignVariant("missing", "alice")
	if domainErr := core.GetDomainError(err); domainErr == nil || domainErr.Code != core.ErrorCodeNotFound {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

func TestLifecycle(t *testing.T) {
	tester := newTester()
	if err := tester.CreateTest(validConfig("t1")); err != nil {
		t.Fatalf("CreateTest: %v", err)
	}

	if err := tester.Pause("t1"); err == nil {
		t.Error("pause from draft should fail")
	}
	if err := tester.Start("t1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := tester.Pause("t1"); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := tester.Start("t1"); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := tester.Complete("t1"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := tester.Start("t1"); err == nil {
		t.Error("start after completion should fail")
	}
}

func TestRecordAndAnalyze(t *testing.T) {
	tester := newTester()
	if err := tester.CreateTest(validConfig("t1")); err != nil {
		t.Fatalf("CreateTest: %v", err)
	}

	// 少量样本：不显著
	for i := 0; i < 50; i++ {
		if err := tester.RecordInteraction("t1", fmt.Sprintf("user-%d", i), i%5 == 0, nil); err != nil {
			t.Fatalf("RecordInteraction: %v", err)
		}
	}
	result, err := tester.AnalyzeTest("t1")
	if err != nil {
		t.Fatalf("AnalyzeTest: %v", err)
	}
	if result.Significant {
		t.Error("50 samples should not be significant")
	}
	if !result.Placeholder {
		t.Error("placeholder flag must be set")
	}

	totalSamples := 0
	totalConversions := 0
	for _, v := range result.Variants {
		totalSamples += v.Samples
		totalConversions += v.Conversions
		if v.Samples > 0 {
			want := float64(v.Conversions) / float64(v.Samples)
			if math.Abs(v.ConversionRate-want) > 1e-9 {
				t.Errorf("conversion rate = %f, want %f", v.ConversionRate, want)
			}
		}
	}
	if totalSamples != 50 {
		t.Errorf("total samples = %d, want 50", totalSamples)
	}
	if totalConversions != 10 {
		t.Errorf("total conversions = %d, want 10", totalConversions)
	}

	// 超过 100 个样本：占位显著性翻正
	for i := 50; i < 150; i++ {
		if err := tester.RecordInteraction("t1", fmt.Sprintf("user-%d", i), false, nil); err != nil {
			t.Fatalf("RecordInteraction: %v", err)
		}
	}
	result, err = tester.AnalyzeTest("t1")
	if err != nil {
		t.Fatalf("AnalyzeTest: %v", err)
	}
	if !result.Significant {
		t.Error("150 samples should flip placeholder significance")
	}
}

func TestMinSampleSize(t *testing.T) {
	// 基线 10%、MDE 0.1、α=0.05、功效 0.8：教科书值约 199 每组
	n := minSampleSize(0.1, 0.1, 0.05, 0.8)
	if n < 150 || n > 250 {
		t.Errorf("recommended sample size = %d, want ~199", n)
	}
}
