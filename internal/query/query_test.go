// ABOUTME: Tests for the intent classifier precedence rules
// ABOUTME: Covers hint overrides, fallback ordering, defaults, and purity

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_EmptyMessage(t *testing.T) {
	for _, choice := range []string{"", "pcm", "inline", "rag", "bogus"} {
		for _, msg := range []string{"", "   ", "\t\n"} {
			dt, cmd, err := Classify(choice, msg)
			require.ErrorIs(t, err, ErrEmptyMessage, "choice=%q msg=%q", choice, msg)
			assert.Empty(t, string(dt))
			assert.Empty(t, string(cmd))
		}
	}
}

func TestClassify_PCMHint(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    DataType
		wantCmd Command
	}{
		{"trend keyword", "show me the trend", DataTypePCM, CommandTrend},
		{"korean chart keyword", "차트 보여줘", DataTypePCM, CommandTrend},
		{"commonality", "commonality for device A", DataTypePCM, CommandCommonality},
		{"sameness", "sameness check", DataTypePCM, CommandSameness},
		{"point", "site level please", DataTypePCM, CommandPoint},
		{"sameness compound beats sameness", "sameness_to_trend now", DataTypePCM, CommandSamenessToTrend},
		{"commonality compound beats commonality", "commonality_to_trend now", DataTypePCM, CommandCommonalityToTrend},
		{"generic to_trend", "to_trend it", DataTypePCM, CommandToTrend},
		{"default is trend", "do something with this data", DataTypePCM, CommandTrend},
		{"two trigger reroutes", "give me the two tables", DataTypeTwoTables, CommandTwoTables},
		{"two beats trend", "two tables trend", DataTypeTwoTables, CommandTwoTables},
		{"empty lot scenario", "show me the two tables but lot is empty", DataTypeTwoTables, CommandTwoTablesEmptyLot},
		{"empty pe scenario", "two tables with empty pe", DataTypeTwoTables, CommandTwoTablesEmptyPE},
		{"empty both when ambiguous", "two tables empty lot and pe", DataTypeTwoTables, CommandTwoTablesEmptyBoth},
		{"empty both when neither", "two tables all empty", DataTypeTwoTables, CommandTwoTablesEmptyBoth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt, cmd, err := Classify("pcm", tt.message)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dt)
			assert.Equal(t, tt.wantCmd, cmd)
		})
	}
}

// The pcm hint never errors for a non-empty message.
func TestClassify_PCMHintNeverErrors(t *testing.T) {
	messages := []string{
		"x", "completely unrelated text", "12345", "???", "empty", "lot",
	}
	for _, msg := range messages {
		dt, cmd, err := Classify("PCM", msg)
		require.NoError(t, err, "message=%q", msg)
		assert.NotEmpty(t, string(dt))
		assert.NotEmpty(t, string(cmd))
	}
}

func TestClassify_InlineHint(t *testing.T) {
	tests := []struct {
		message string
		want    Command
	}{
		{"group by device", CommandTrendFollowup},
		{"main_eq 별로 보여줘", CommandTrendFollowup},
		{"initial view please", CommandTrendInitial},
		{"처음 분석", CommandTrendInitial},
		{"performance check", CommandPerformance},
		{"성능 모니터링", CommandPerformance},
		{"anything else", CommandTrendInitial},
	}
	for _, tt := range tests {
		dt, cmd, err := Classify("inline", tt.message)
		require.NoError(t, err)
		assert.Equal(t, DataTypeInline, dt)
		assert.Equal(t, tt.want, cmd, "message=%q", tt.message)
	}
}

func TestClassify_RAGHint(t *testing.T) {
	dt, cmd, err := Classify("rag", "search the process documents")
	require.NoError(t, err)
	assert.Equal(t, DataTypeRAG, dt)
	assert.Equal(t, CommandSearch, cmd)

	dt, cmd, err = Classify("rag", "why is the yield down")
	require.NoError(t, err)
	assert.Equal(t, DataTypeRAG, dt)
	assert.Equal(t, CommandGeneral, cmd)
}

func TestClassify_HintCaseInsensitive(t *testing.T) {
	dt, cmd, err := Classify("  RaG ", "search something")
	require.NoError(t, err)
	assert.Equal(t, DataTypeRAG, dt)
	assert.Equal(t, CommandSearch, cmd)
}

func TestClassify_Fallback(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    DataType
		wantCmd Command
	}{
		{"lookup wins over pcm", "search the trend docs", DataTypeRAG, CommandSearch},
		{"summary is a lookup", "summary of last week", DataTypeRAG, CommandSearch},
		{"compound beats commonality keyword", "commonality_to_trend for device A", DataTypePCM, CommandCommonalityToTrend},
		{"sameness compound", "run sameness_to_trend", DataTypePCM, CommandSamenessToTrend},
		{"pcm trend", "pcm trend please", DataTypePCM, CommandTrend},
		{"pcm bare keyword defaults to trend", "pcm", DataTypePCM, CommandTrend},
		{"pcm point", "포인트 분석", DataTypePCM, CommandPoint},
		{"inline cpk", "cpk achieve rate", DataTypeInline, CommandCPKAchieveRate},
		{"inline edit default", "inline something", DataTypeInline, CommandEdit},
		{"nothing matches", "hello there", DataTypeRAG, CommandGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt, cmd, err := Classify("", tt.message)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dt)
			assert.Equal(t, tt.wantCmd, cmd)
		})
	}
}

// An unrecognized hint behaves exactly like no hint.
func TestClassify_UnrecognizedHint(t *testing.T) {
	dt1, cmd1, err1 := Classify("mystery", "pcm trend please")
	dt2, cmd2, err2 := Classify("", "pcm trend please")
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, dt2, dt1)
	assert.Equal(t, cmd2, cmd1)
}

func TestClassify_Pure(t *testing.T) {
	inputs := []struct{ choice, message string }{
		{"", "commonality_to_trend for device A"},
		{"pcm", "two tables lot empty"},
		{"inline", "group by route"},
		{"rag", "find the process file"},
		{"", ""},
	}
	for _, in := range inputs {
		dt1, cmd1, err1 := Classify(in.choice, in.message)
		dt2, cmd2, err2 := Classify(in.choice, in.message)
		assert.Equal(t, dt1, dt2)
		assert.Equal(t, cmd1, cmd2)
		assert.Equal(t, err1, err2)
	}
}
