// ABOUTME: Module executor dispatching confirmed analysis runs to generators
// ABOUTME: Wraps each dataset in the result envelope the chat layer streams out

package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fabworks/iqc-gateway/internal/conversation"
)

// ErrUnknownModule is returned when the requested module has no executor.
var ErrUnknownModule = errors.New("unknown analysis module")

// Result is the envelope for one completed module run. RealData carries the
// full dataset and is stripped before the run is written to chat history.
type Result struct {
	Result         string           `json:"result"`
	RealData       any              `json:"real_data,omitempty"`
	Commonality    *CommonalityInfo `json:"commonality,omitempty"`
	Criteria       string           `json:"criteria,omitempty"`
	Answer         string           `json:"answer,omitempty"`
	SQL            string           `json:"sql,omitempty"`
	Timestamp      string           `json:"timestamp"`
	SuccessMessage string           `json:"success_message"`
}

// Executor runs a confirmed analysis module against the sample generators.
type Executor struct {
	logger *slog.Logger
}

func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger.With("component", "dataset")}
}

// Execute runs the named module with the confirmed parameters and returns the
// result envelope.
func (e *Executor) Execute(ctx context.Context, module string, params map[string]any) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var res *Result
	switch module {
	case conversation.ModuleLotStart:
		data := PCMTrend()
		res = &Result{
			Result:         "lot_start",
			RealData:       data,
			SQL:            `SELECT * FROM pcm_data WHERE date >= "2024-01-01" ORDER BY date_wafer_id`,
			SuccessMessage: summary("PCM TREND", "lot_start", countSeries(data)),
		}

	case conversation.ModuleCommonality:
		table, info := Commonality()
		res = &Result{
			Result:         "commonality",
			RealData:       table,
			Commonality:    &info,
			SQL:            `SELECT * FROM pcm_data WHERE type = "commonality"`,
			SuccessMessage: summary("COMMONALITY", "commonality", len(table)),
		}

	case conversation.ModuleSameness:
		table, _ := Commonality()
		res = &Result{
			Result:         "sameness",
			RealData:       table,
			SQL:            `SELECT * FROM pcm_data WHERE type = "sameness"`,
			SuccessMessage: summary("SAMENESS", "sameness", len(table)),
		}

	case conversation.ModuleLotPoint:
		data := PCMPoint()
		res = &Result{
			Result:         "lot_point",
			RealData:       data,
			SQL:            `SELECT * FROM pcm_data WHERE type = "point"`,
			SuccessMessage: summary("PCM POINT", "lot_point", len(data)),
		}

	case conversation.ModuleSamenessToTrend, conversation.ModuleCommonalityToTrend, conversation.ModulePCMToTrend:
		data := PCMToTrend()
		source := strings.TrimSuffix(module, "_to_trend")
		res = &Result{
			Result:         module,
			RealData:       data,
			SQL:            fmt.Sprintf(`SELECT * FROM pcm_to_trend WHERE type = %q`, source),
			SuccessMessage: summary("PCM TO TREND", module, countSeries(data)),
		}

	case conversation.ModuleLotHoldPEConfirm:
		lotHold, peConfirm := TwoTables(scenarioFor(params))
		res = &Result{
			Result: "lot_hold_pe_confirm_module",
			RealData: []map[string]any{
				{"lot_hold_module": lotHold},
				{"pe_confirm_module": peConfirm},
			},
			SQL: "SELECT * FROM lot_hold_table, pe_confirm_table",
			SuccessMessage: fmt.Sprintf(
				"TWO TABLES data ready\n• Result Type: lot_hold_pe_confirm_module\n• Lot Hold Records: %d\n• PE Confirm Records: %d",
				len(lotHold), len(peConfirm)),
		}

	case conversation.ModuleInlineTrendInitial:
		data := InlineTrendInitial()
		res = &Result{
			Result:         "inline_trend_initial",
			RealData:       data,
			Criteria:       "DEVICE",
			SuccessMessage: summary("INLINE TREND INITIAL", "inline_trend_initial", len(data)),
		}

	case conversation.ModuleInlineTrendFollow:
		criteria, _ := params["criteria"].(string)
		data := InlineTrendFollowup(criteria)
		res = &Result{
			Result:         "inline_trend_followup",
			RealData:       data,
			Criteria:       criteria,
			SuccessMessage: summary("INLINE TREND FOLLOWUP", "inline_trend_followup", len(data)),
		}

	case conversation.ModuleInlineAnalysis, conversation.ModuleInlinePerformance:
		data := InlineAnalysis()
		res = &Result{
			Result:         module,
			RealData:       data,
			SuccessMessage: summary("INLINE ANALYSIS", module, len(data)),
		}

	case conversation.ModuleCPKAchieveRate:
		data := CPKAchieveRate()
		res = &Result{
			Result:         "cpk_achieve_rate_initial",
			RealData:       data,
			SuccessMessage: summary("CPK ACHIEVE RATE", "cpk_achieve_rate_initial", len(data)),
		}

	case conversation.ModuleRAGSearch:
		hits := RAGSearch()
		res = &Result{
			Result:         "rag_search",
			RealData:       hits,
			Answer:         fmt.Sprintf("Found %d matching documents.", len(hits)),
			SuccessMessage: summary("RAG SEARCH", "rag_search", len(hits)),
		}

	case conversation.ModuleRAGGeneral:
		raw, _ := params["raw"].(string)
		res = &Result{
			Result:         "rag_general",
			Answer:         generalAnswer(raw),
			SuccessMessage: "RAG data ready\n• Result Type: rag_general",
		}

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, module)
	}

	res.Timestamp = time.Now().UTC().Format(time.RFC3339)
	e.logger.Debug("module executed", "module", module, "result", res.Result)
	return res, nil
}

// scenarioFor maps the classified dual-table command onto an empty-table
// scenario.
func scenarioFor(params map[string]any) string {
	cmd, _ := params["command"].(string)
	switch cmd {
	case "two_tables_empty_lot":
		return ScenarioEmptyLotHold
	case "two_tables_empty_pe":
		return ScenarioEmptyPEConfirm
	case "two_tables_empty_both":
		return ScenarioBothEmpty
	default:
		return ""
	}
}

func generalAnswer(question string) string {
	q := strings.TrimSpace(question)
	if q == "" {
		return "I can run PCM, inline, and document analyses. Ask about a trend, commonality, sameness, or point view, or search the document index."
	}
	return fmt.Sprintf("Here is a summary for %q. For chart-backed results, ask for a trend, commonality, sameness, or point analysis.", q)
}

func summary(label, resultType string, records int) string {
	return fmt.Sprintf("%s data ready\n• Result Type: %s\n• Total Records: %d", label, resultType, records)
}

func countSeries(data map[string][]Row) int {
	total := 0
	for _, rows := range data {
		total += len(rows)
	}
	return total
}
