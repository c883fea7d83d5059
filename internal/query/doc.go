// Package query classifies free-text chat messages into a data type and a
// command using ordered keyword precedence rules.
//
// # Contract
//
// Classify(choice, message) returns one of the closed DataType/Command pairs
// or ErrEmptyMessage:
//
//	dt, cmd, err := query.Classify("pcm", "show me the trend")
//	// dt == query.DataTypePCM, cmd == query.CommandTrend
//
// The choice hint is a priority override. When it names a known data type,
// keywords only select the command within that type; they never change the
// type itself. The one exception is the "two" trigger under the pcm hint,
// which re-routes to the dual-table type because the dual-table view is
// requested through the pcm UI tab.
//
// # Precedence
//
// Within the pcm hint (most specific first):
//
//	two trigger > sameness_to_trend > commonality_to_trend > to_trend
//	> trend group > commonality group > sameness > point group > trend default
//
// Without a hint:
//
//	lookup keywords > compound *_to_trend qualifiers > pcm group
//	> inline group > rag/general default
//
// # Purity
//
// Classify is referentially transparent. The edit flow re-classifies edited
// message text, so identical inputs must route identically every time.
package query
