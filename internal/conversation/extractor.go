// ABOUTME: Parameter extraction collaborator for the conversation coordinator
// ABOUTME: Keyword-based default implementation deriving modules from the classifier

package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/fabworks/iqc-gateway/internal/query"
)

// ParamExtractor turns a message into a tentative (module, params) pair and
// merges modification requests into previously extracted parameters.
// Failures are recoverable: the coordinator reports them to the user and
// leaves the session unchanged so the turn can be retried.
type ParamExtractor interface {
	Extract(ctx context.Context, message, choiceHint string) (module string, params map[string]any, err error)
	Merge(ctx context.Context, original map[string]any, modification, module string) (map[string]any, error)
}

// Module identifiers the dialogue converges toward. These name the downstream
// executable actions and match the result types the web client renders.
const (
	ModuleLotStart           = "lot_start"
	ModuleLotPoint           = "lot_point"
	ModuleCommonality        = "commonality"
	ModuleSameness           = "sameness"
	ModuleSamenessToTrend    = "sameness_to_trend"
	ModuleCommonalityToTrend = "commonality_to_trend"
	ModulePCMToTrend         = "pcm_to_trend"
	ModuleLotHoldPEConfirm   = "lot_hold_pe_confirm_module"
	ModuleInlineTrendInitial = "inline_trend_initial"
	ModuleInlineTrendFollow  = "inline_trend_followup"
	ModuleInlinePerformance  = "inline_performance"
	ModuleInlineAnalysis     = "inline_analysis"
	ModuleCPKAchieveRate     = "cpk_achieve_rate_initial"
	ModuleRAGSearch          = "rag_search"
	ModuleRAGGeneral         = "rag_general"
)

// ModuleFor maps a classifier result to the module that would execute it.
func ModuleFor(dt query.DataType, cmd query.Command) string {
	switch dt {
	case query.DataTypePCM:
		switch cmd {
		case query.CommandPoint:
			return ModuleLotPoint
		case query.CommandCommonality:
			return ModuleCommonality
		case query.CommandSameness:
			return ModuleSameness
		case query.CommandSamenessToTrend:
			return ModuleSamenessToTrend
		case query.CommandCommonalityToTrend:
			return ModuleCommonalityToTrend
		case query.CommandToTrend:
			return ModulePCMToTrend
		default:
			return ModuleLotStart
		}
	case query.DataTypeTwoTables:
		return ModuleLotHoldPEConfirm
	case query.DataTypeInline:
		switch cmd {
		case query.CommandTrendFollowup:
			return ModuleInlineTrendFollow
		case query.CommandPerformance:
			return ModuleInlinePerformance
		case query.CommandCPKAchieveRate:
			return ModuleCPKAchieveRate
		case query.CommandEdit, query.CommandTrend:
			return ModuleInlineAnalysis
		default:
			return ModuleInlineTrendInitial
		}
	default:
		if cmd == query.CommandSearch {
			return ModuleRAGSearch
		}
		return ModuleRAGGeneral
	}
}

// inline grouping criteria, checked in this order
var criteriaOrder = []string{"main_eq", "eq_cham", "device", "route", "oper", "para"}

// ExtractCriteria pulls the inline grouping dimension out of a message,
// defaulting to PARA.
func ExtractCriteria(message string) string {
	msg := strings.ToLower(message)
	for _, c := range criteriaOrder {
		if strings.Contains(msg, c) {
			return strings.ToUpper(c)
		}
	}
	return "PARA"
}

// KeywordExtractor is the default ParamExtractor. It routes through the
// intent classifier and records the routing decision plus the raw text as
// the tentative parameter set shown to the user for confirmation.
type KeywordExtractor struct{}

// Extract classifies the message and builds the tentative parameter set.
func (KeywordExtractor) Extract(ctx context.Context, message, choiceHint string) (string, map[string]any, error) {
	dt, cmd, err := query.Classify(choiceHint, message)
	if err != nil {
		return "", nil, fmt.Errorf("classifying message: %w", err)
	}

	module := ModuleFor(dt, cmd)
	params := map[string]any{
		"raw":       message,
		"data_type": string(dt),
		"command":   string(cmd),
	}
	if cmd == query.CommandTrendFollowup {
		params["criteria"] = ExtractCriteria(message)
	}
	return module, params, nil
}

// Merge folds a modification request into the previously extracted
// parameters. The original map is not mutated; transitions work on copies.
func (KeywordExtractor) Merge(ctx context.Context, original map[string]any, modification, module string) (map[string]any, error) {
	if strings.TrimSpace(modification) == "" {
		return nil, fmt.Errorf("modification request is empty")
	}

	merged := make(map[string]any, len(original)+1)
	for k, v := range original {
		merged[k] = v
	}
	merged["mod_request"] = modification
	if module == ModuleInlineTrendFollow {
		merged["criteria"] = ExtractCriteria(modification)
	}
	return merged, nil
}
