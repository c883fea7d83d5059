// ABOUTME: Keyword-based intent classifier mapping (choice, message) to a data type and command
// ABOUTME: Pure ordered-rule matching so edit/redo flows reproduce identical routing

package query

import (
	"errors"
	"strings"
)

// ErrEmptyMessage is returned when the message is empty or whitespace-only.
var ErrEmptyMessage = errors.New("message required")

// DataType is the top-level classification of a user request.
type DataType string

const (
	DataTypePCM       DataType = "pcm"    // primary process-control data
	DataTypeTwoTables DataType = "two"    // dual-table lot hold / PE confirm view
	DataTypeInline    DataType = "inline" // inline metrology data
	DataTypeRAG       DataType = "rag"    // document lookup / free-form answer
)

// Command is the finer-grained action within a data type.
type Command string

const (
	CommandTrend              Command = "trend"
	CommandCommonality        Command = "commonality"
	CommandSameness           Command = "sameness"
	CommandPoint              Command = "point"
	CommandSamenessToTrend    Command = "sameness_to_trend"
	CommandCommonalityToTrend Command = "commonality_to_trend"
	CommandToTrend            Command = "to_trend"

	CommandTwoTables          Command = "two_tables"
	CommandTwoTablesEmptyLot  Command = "two_tables_empty_lot"
	CommandTwoTablesEmptyPE   Command = "two_tables_empty_pe"
	CommandTwoTablesEmptyBoth Command = "two_tables_empty_both"

	CommandTrendInitial     Command = "trend_initial"
	CommandTrendFollowup    Command = "trend_followup"
	CommandPerformance      Command = "performance"
	CommandCPKAchieveRate   Command = "cpk_achieve_rate_initial"
	CommandEdit             Command = "edit"

	CommandSearch  Command = "search"
	CommandGeneral Command = "general"
)

// Keyword groups. Order inside each list does not matter; the precedence
// contract lives in the matcher functions below, which check groups in a
// fixed order. Korean synonyms come from the production keyword lists.
var (
	trendKeywords       = []string{"trend", "트렌드", "차트", "그래프"}
	commonalityKeywords = []string{"commonality", "커먼", "공통"}
	samenessKeywords    = []string{"sameness"}
	pointKeywords       = []string{"point", "포인트", "site", "사이트"}

	pcmKeywords = []string{
		"pcm", "trend", "트렌드", "차트", "그래프",
		"commonality", "커먼", "공통", "sameness",
		"point", "포인트", "site", "사이트",
	}

	criteriaKeywords = []string{
		"별로", "기준으로", "by", "group by",
		"main_eq", "device", "para", "eq_cham", "route", "oper",
	}
	initialKeywords     = []string{"initial", "초기", "처음"}
	performanceKeywords = []string{"performance", "성능", "모니터링"}

	inlineKeywords = []string{"inline", "trend", "edit", "cpk", "achieve", "달성률"}
	cpkKeywords    = []string{"cpk", "achieve", "달성률"}

	ragKeywords = []string{
		"검색", "search", "찾기", "조회",
		"문서", "document", "파일", "file",
	}
	// The hint-less fallback treats summary-style requests as lookups too.
	ragFallbackKeywords = []string{
		"검색", "search", "찾기", "조회",
		"문서", "document", "파일", "file",
		"설명", "요약", "summary",
	}
)

// Classify resolves what the user wants given a choice hint and the raw
// message. The hint is a priority override: when it names a known data type,
// keyword matching only selects the command within that type. An empty or
// unrecognized hint falls back to whole-message precedence matching.
//
// Classify is pure: the same inputs always produce the same result.
func Classify(choice, message string) (DataType, Command, error) {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return "", "", ErrEmptyMessage
	}

	switch DataType(strings.ToLower(strings.TrimSpace(choice))) {
	case DataTypePCM:
		dt, cmd := classifyPCM(msg)
		return dt, cmd, nil
	case DataTypeInline:
		return DataTypeInline, classifyInline(msg), nil
	case DataTypeRAG:
		return DataTypeRAG, classifyRAG(msg), nil
	default:
		return classifyFallback(msg)
	}
}

// classifyPCM matches a message under the primary (pcm) hint. A "two" trigger
// re-routes to the dual-table type before anything else; after that the
// compound *_to_trend patterns are checked most-specific first.
func classifyPCM(msg string) (DataType, Command) {
	if strings.Contains(msg, "two") {
		return DataTypeTwoTables, classifyTwoTables(msg)
	}

	switch {
	case strings.Contains(msg, "sameness_to_trend"):
		return DataTypePCM, CommandSamenessToTrend
	case strings.Contains(msg, "commonality_to_trend"):
		return DataTypePCM, CommandCommonalityToTrend
	case strings.Contains(msg, "to_trend"):
		return DataTypePCM, CommandToTrend
	case containsAny(msg, trendKeywords):
		return DataTypePCM, CommandTrend
	case containsAny(msg, commonalityKeywords):
		return DataTypePCM, CommandCommonality
	case containsAny(msg, samenessKeywords):
		return DataTypePCM, CommandSameness
	case containsAny(msg, pointKeywords):
		return DataTypePCM, CommandPoint
	default:
		// The primary type always has a sensible default.
		return DataTypePCM, CommandTrend
	}
}

// classifyTwoTables picks the dual-table command, including the three
// deterministic empty-table test scenarios.
func classifyTwoTables(msg string) Command {
	if !strings.Contains(msg, "empty") {
		return CommandTwoTables
	}
	hasLot := strings.Contains(msg, "lot")
	hasPE := strings.Contains(msg, "pe")
	switch {
	case hasLot && !hasPE:
		return CommandTwoTablesEmptyLot
	case hasPE && !hasLot:
		return CommandTwoTablesEmptyPE
	default:
		return CommandTwoTablesEmptyBoth
	}
}

// classifyInline matches a message under the inline hint. Criteria-style
// grouping requests win, then explicit initial/performance keywords; the
// default is the initial trend view because it is the most broadly useful.
func classifyInline(msg string) Command {
	switch {
	case containsAny(msg, criteriaKeywords):
		return CommandTrendFollowup
	case containsAny(msg, initialKeywords):
		return CommandTrendInitial
	case containsAny(msg, performanceKeywords):
		return CommandPerformance
	default:
		return CommandTrendInitial
	}
}

// classifyRAG matches a message under the rag hint.
func classifyRAG(msg string) Command {
	if containsAny(msg, ragKeywords) {
		return CommandSearch
	}
	return CommandGeneral
}

// classifyFallback inspects the whole message when no hint applies. Strict
// precedence: lookup keywords, then the two compound trend qualifiers, then
// the pcm keyword group (internally ordered), then the inline group, then the
// general lookup default.
func classifyFallback(msg string) (DataType, Command, error) {
	if containsAny(msg, ragFallbackKeywords) {
		return DataTypeRAG, CommandSearch, nil
	}

	if strings.Contains(msg, "sameness_to_trend") {
		return DataTypePCM, CommandSamenessToTrend, nil
	}
	if strings.Contains(msg, "commonality_to_trend") {
		return DataTypePCM, CommandCommonalityToTrend, nil
	}

	if containsAny(msg, pcmKeywords) {
		switch {
		case containsAny(msg, trendKeywords):
			return DataTypePCM, CommandTrend, nil
		case containsAny(msg, commonalityKeywords):
			return DataTypePCM, CommandCommonality, nil
		case containsAny(msg, samenessKeywords):
			return DataTypePCM, CommandSameness, nil
		case containsAny(msg, pointKeywords):
			return DataTypePCM, CommandPoint, nil
		default:
			return DataTypePCM, CommandTrend, nil
		}
	}

	if containsAny(msg, inlineKeywords) {
		switch {
		case containsAny(msg, cpkKeywords):
			return DataTypeInline, CommandCPKAchieveRate, nil
		case strings.Contains(msg, "trend"):
			return DataTypeInline, CommandTrend, nil
		default:
			return DataTypeInline, CommandEdit, nil
		}
	}

	return DataTypeRAG, CommandGeneral, nil
}

func containsAny(msg string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(msg, k) {
			return true
		}
	}
	return false
}
