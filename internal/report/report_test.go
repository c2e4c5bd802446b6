package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kquant/internal/contracts"
	"github.com/wonny/kquant/pkg/config"
)

func sampleRecord() *contracts.ScoredRecord {
	rec := &contracts.ScoredRecord{
		Name:   "삼성전자",
		Market: "KOSPI",
		Close:  70000,
		PER:    12.5,
		PBR:    1.2,
		ROE:    contracts.NaN(),
	}
	rec.Ticker = "005930"
	rec.QualityScore = 7
	rec.RevenueStreak = 3
	return rec
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt(sampleRecord())

	assert.Contains(t, prompt, "005930")
	assert.Contains(t, prompt, "삼성전자")
	assert.Contains(t, prompt, "KOSPI")
	assert.Contains(t, prompt, "investment_grade")
}

func TestFormatQuantData(t *testing.T) {
	text := formatQuantData(sampleRecord())

	assert.Contains(t, text, "### 밸류에이션")
	assert.Contains(t, text, "### 배당")
	assert.Contains(t, text, "- PER: 12.50")
	assert.Contains(t, text, "- 품질 점수(0~9): 7")
	assert.Contains(t, text, "- 매출 연속성장: 3년")
	// 미산출 지표는 N/A
	assert.Contains(t, text, "- ROE(%): N/A")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fenced with chatter", "분석 결과입니다.\n```json\n{\"a\": 1}\n```\n이상입니다.", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"no fence", `{"a": 1}`, `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.in))
		})
	}
}

const sampleResponse = `` + "```json" + `
{
  "buffett": {"score": 8, "title": "넓은 해자", "analysis": "메모리 시장 지배력이 견고합니다."},
  "damodaran": {"score": 7, "title": "성숙기 성장주", "analysis": "숫자와 내러티브가 일치합니다."},
  "fisher": {"score": 7, "title": "R&D 우위", "analysis": "연구개발 투자가 꾸준합니다."},
  "dorsey": {"score": 8, "title": "비용 우위", "analysis": "규모의 경제가 뚜렷합니다."},
  "kostolany": {"score": 5, "title": "심리 중립", "analysis": "수급이 관망세입니다."},
  "composite_score": 72,
  "investment_grade": "B+",
  "summary": "장기 보유에 적합한 우량주입니다.",
  "risks": ["메모리 사이클 둔화", "환율 변동", "경쟁 심화"],
  "catalysts": ["업황 회복", "주주환원 확대", "신사업 성장"]
}
` + "```"

func TestParseResponse(t *testing.T) {
	report, err := parseResponse(sampleResponse, sampleRecord())
	require.NoError(t, err)

	assert.Equal(t, "005930", report.Ticker)
	assert.Equal(t, "삼성전자", report.Name)
	assert.Equal(t, 72, report.CompositeScore)
	assert.Equal(t, "B+", report.Grade)
	assert.Len(t, report.Masters, 5)
	assert.Equal(t, 8, report.Masters["buffett"].Score)
	assert.Equal(t, "심리 중립", report.Masters["kostolany"].Title)
	assert.Len(t, report.Risks, 3)
	assert.Len(t, report.Catalysts, 3)
	assert.False(t, report.CreatedAt.IsZero())
}

func TestParseResponseInvalidJSON(t *testing.T) {
	_, err := parseResponse("죄송합니다, 분석할 수 없습니다.", sampleRecord())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "005930"))
}

func TestNewGeneratorRequiresKey(t *testing.T) {
	cfg := &config.Config{}
	_, err := NewGenerator(cfg, nil, nil)
	assert.Error(t, err)

	cfg.Anthropic.APIKey = "test-key"
	g, err := NewGenerator(cfg, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, g)
}
