package report

import (
	"fmt"
	"strings"

	"github.com/wonny/kquant/internal/contracts"
)

// 5대 투자 대가 프레임워크 시스템 프롬프트
const systemPrompt = `당신은 한국 주식시장 전문 애널리스트입니다.
5대 투자 대가의 투자 철학을 기반으로 종목의 정성적 분석을 수행합니다.
반드시 제공된 정량 데이터를 근거로 분석하되, 데이터만으로는 알 수 없는
정성적 판단(경쟁우위, 경영진, 산업 전망 등)도 해당 기업에 대한
일반적으로 알려진 정보를 바탕으로 분석해 주세요.

분석 프레임워크:

1. Warren Buffett (경제적 해자 & 안전마진)
   - 경쟁 우위 지속 가능성 (Economic Moat)
   - 사업 모델의 이해 용이성 (Circle of Competence)
   - 경영진의 정직성과 역량 (Management Quality)
   - 안전마진 (Margin of Safety: S-RIM 괴리율 활용)
   - 장기 보유 적합성

2. Aswath Damodaran (내재가치 & 내러티브)
   - 기업의 성장 단계 (도입/성장/성숙/쇠퇴)
   - 내러티브 vs 숫자의 일관성 (Story-Numbers alignment)
   - 리스크 대비 보상 (Risk-Reward)
   - 재투자 효율성 (ROIC vs WACC 관점)

3. Philip Fisher (성장 잠재력 & 경영 품질)
   - R&D 및 혁신 역량
   - 이익률 개선 추세 (Profit Margin Trajectory)
   - 장기 성장 잠재력
   - 노사관계 및 조직 문화

4. Pat Dorsey (경제적 해자 심층 분석)
   - 네트워크 효과 (Network Effects)
   - 전환 비용 (Switching Costs)
   - 무형 자산 (브랜드, 특허, 라이선스)
   - 비용 우위 (Cost Advantages)
   - 해자 트렌드 (확대/유지/축소)

5. André Kostolany (시장 심리 & 역발상)
   - 현재 시장 심리 상태 (과열/공포/중립)
   - 역발상 투자 기회 여부
   - 유동성 및 수급 분석
   - 인내심 필요 정도 (달걀이론 관점)`

const userPromptTemplate = `아래 종목의 정량 데이터를 분석하여, 5대 투자 대가 관점에서 정성 분석 보고서를 작성해주세요.

## 종목 정보
- 종목코드: %s
- 종목명: %s
- 시장: %s

## 정량 데이터
%s

## 출력 형식

반드시 아래 JSON 형식으로 응답하세요. JSON 외 다른 텍스트는 포함하지 마세요.

` + "```json" + `
{
  "buffett": {"score": <1-10 정수>, "title": "<한 줄 요약>", "analysis": "<3-5문장의 분석>"},
  "damodaran": {"score": <1-10 정수>, "title": "<한 줄 요약>", "analysis": "<3-5문장의 분석>"},
  "fisher": {"score": <1-10 정수>, "title": "<한 줄 요약>", "analysis": "<3-5문장의 분석>"},
  "dorsey": {"score": <1-10 정수>, "title": "<한 줄 요약>", "analysis": "<3-5문장의 분석>"},
  "kostolany": {"score": <1-10 정수>, "title": "<한 줄 요약>", "analysis": "<3-5문장의 분석>"},
  "composite_score": <1-100 정수, 가중평균: Buffett 25%%, Damodaran 20%%, Fisher 20%%, Dorsey 20%%, Kostolany 15%%>,
  "investment_grade": "<A+/A/B+/B/C+/C/D 중 하나>",
  "summary": "<5-7문장의 종합 투자 의견>",
  "risks": ["<리스크1>", "<리스크2>", "<리스크3>"],
  "catalysts": ["<촉매1>", "<촉매2>", "<촉매3>"]
}
` + "```"

// buildPrompt renders the user prompt for one scored record.
func buildPrompt(rec *contracts.ScoredRecord) string {
	return fmt.Sprintf(userPromptTemplate, rec.Ticker, rec.Name, rec.Market, formatQuantData(rec))
}

type metric struct {
	label string
	value string
}

func fmtFloat(v contracts.Float, decimals int) string {
	if v.IsNaN() {
		return "N/A"
	}
	return fmt.Sprintf("%.*f", decimals, float64(v))
}

func fmtWhole(v contracts.Float) string {
	if v.IsNaN() {
		return "N/A"
	}
	return fmt.Sprintf("%.0f", float64(v))
}

func fmtFlag(v int) string {
	if v == 1 {
		return "O"
	}
	return "X"
}

// formatQuantData lays the record out section by section so the model
// can ground each framework on concrete numbers.
func formatQuantData(rec *contracts.ScoredRecord) string {
	sections := []struct {
		title   string
		metrics []metric
	}{
		{"밸류에이션", []metric{
			{"PER", fmtFloat(rec.PER, 2)},
			{"PBR", fmtFloat(rec.PBR, 2)},
			{"PSR", fmtFloat(rec.PSR, 2)},
			{"PEG", fmtFloat(rec.PEG, 2)},
			{"ROE(%)", fmtFloat(rec.ROE, 2)},
			{"EPS", fmtWhole(rec.EPS)},
			{"BPS", fmtWhole(rec.BPS)},
			{"이익수익률(%)", fmtFloat(rec.EarningsYield, 2)},
			{"적정주가(S-RIM)", fmtWhole(rec.FairValue)},
			{"괴리율(%)", fmtFloat(rec.ValuationGap, 2)},
		}},
		{"수익성", []metric{
			{"영업이익률(%)", fmtFloat(rec.OpMargin, 2)},
			{"전년 영업이익률(%)", fmtFloat(rec.PrevOpMargin, 2)},
			{"이익률 개선", fmtFlag(rec.MarginImproved)},
			{"이익률 급개선", fmtFlag(rec.MarginSurge)},
			{"이익품질 양호", fmtFlag(rec.EarningsQuality)},
			{"현금전환율(%)", fmtFloat(rec.CashConversion, 1)},
			{"FCF수익률(%)", fmtFloat(rec.FCFYield, 2)},
		}},
		{"성장성", []metric{
			{"매출 CAGR(%)", fmtFloat(rec.RevenueCAGR, 1)},
			{"영업이익 CAGR(%)", fmtFloat(rec.OpIncomeCAGR, 1)},
			{"순이익 CAGR(%)", fmtFloat(rec.NetIncomeCAGR, 1)},
			{"영업CF CAGR(%)", fmtFloat(rec.OCFCAGR, 1)},
			{"매출 연속성장", fmt.Sprintf("%d년", rec.RevenueStreak)},
			{"영업이익 연속성장", fmt.Sprintf("%d년", rec.OpIncomeStreak)},
			{"순이익 연속성장", fmt.Sprintf("%d년", rec.NetIncomeStreak)},
			{"분기 매출 YoY(%)", fmtFloat(rec.QRevenueYoY, 1)},
			{"분기 영업이익 YoY(%)", fmtFloat(rec.QOpIncomeYoY, 1)},
			{"분기 순이익 YoY(%)", fmtFloat(rec.QNetIncomeYoY, 1)},
		}},
		{"재무건전성", []metric{
			{"품질 점수(0~9)", fmt.Sprintf("%d", rec.QualityScore)},
			{"부채비율(%)", fmtFloat(rec.DebtRatio, 1)},
			{"부채상환능력", fmtFloat(rec.DebtService, 2)},
			{"CAPEX비율(%)", fmtFloat(rec.CapexRatio, 1)},
			{"흑자전환", fmtFlag(rec.Turnaround)},
		}},
		{"배당", []metric{
			{"배당수익률(%)", fmtFloat(rec.DividendYield, 2)},
			{"DPS", fmtWhole(rec.DPS)},
			{"DPS CAGR(%)", fmtFloat(rec.DPSCAGR, 2)},
			{"배당 연속증가", fmt.Sprintf("%d년", rec.DPSStreak)},
			{"배당·수익 동반증가", fmtFlag(rec.DividendGrowthAligned)},
		}},
		{"기술적 지표", []metric{
			{"52주 최고 대비(%)", fmtFloat(rec.High52wDist, 1)},
			{"52주 최저 대비(%)", fmtFloat(rec.Low52wDist, 1)},
			{"MA20 이격도(%)", fmtFloat(rec.MA20Dev, 1)},
			{"MA60 이격도(%)", fmtFloat(rec.MA60Dev, 1)},
			{"RSI(14)", fmtFloat(rec.RSI14, 1)},
			{"20일 평균 거래대금", fmtWhole(rec.AvgTraded20)},
			{"변동성 60일(%)", fmtFloat(rec.Volatility60, 1)},
		}},
		{"TTM 실적", []metric{
			{"TTM 매출", fmtWhole(rec.TTMRevenue)},
			{"TTM 영업이익", fmtWhole(rec.TTMOperatingIncome)},
			{"TTM 순이익", fmtWhole(rec.TTMNetIncome)},
			{"TTM 영업CF", fmtWhole(rec.OCF)},
			{"TTM FCF", fmtWhole(rec.FCF)},
			{"자본", fmtWhole(rec.Equity)},
			{"부채", fmtWhole(rec.Liabilities)},
		}},
		{"시세", []metric{
			{"종가", fmtWhole(rec.Close)},
			{"시가총액", fmtWhole(rec.MarketCap)},
			{"종합점수", fmtFloat(rec.Composite, 1)},
		}},
	}

	var b strings.Builder
	for _, s := range sections {
		b.WriteString("\n### ")
		b.WriteString(s.title)
		b.WriteString("\n")
		for _, m := range s.metrics {
			b.WriteString("- ")
			b.WriteString(m.label)
			b.WriteString(": ")
			b.WriteString(m.value)
			b.WriteString("\n")
		}
	}
	return b.String()
}
