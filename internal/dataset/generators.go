// ABOUTME: Sample dataset builders for each analysis module
// ABOUTME: Shapes mirror the production result payloads the chart layer expects

package dataset

import (
	"fmt"
	"math/rand/v2"
)

// Row is one record of a generated table.
type Row = map[string]any

// pcm control limits
const (
	pcmUSL = 30
	pcmTGT = 15
	pcmLSL = 1
	pcmUCL = 25
	pcmLCL = 6
)

// inline control limits
const (
	inlineUSL = 550
	inlineLSL = 300
	inlineTGT = 420
	inlineUCL = 500
	inlineLCL = 350
)

// PCMTrend builds per-parameter box series keyed by parameter name. Each row
// carries the five box statistics plus the control limits the trend chart
// draws as horizontal lines.
func PCMTrend() map[string][]Row {
	data := make(map[string][]Row, 2)
	for _, para := range []string{"PARA1", "PARA2"} {
		rows := make([]Row, 0, 40)
		for i := 1; i <= 40; i++ {
			rows = append(rows, Row{
				"DATE_WAFER_ID": fmt.Sprintf("2025-06-%d:36:57:54_A12345678998999", i),
				"MIN":           round2(8 + rand.Float64()*4),
				"MAX":           round2(18 + rand.Float64()*4),
				"Q1":            round2(14 + rand.Float64()*2),
				"Q2":            round2(15 + rand.Float64()*2),
				"Q3":            round2(16 + rand.Float64()*2),
				"DEVICE":        pick("A", "B", "C"),
				"USL":           pcmUSL,
				"TGT":           pcmTGT,
				"LSL":           pcmLSL,
				"UCL":           pcmUCL,
				"LCL":           pcmLCL,
			})
		}
		data[para] = rows
	}
	return data
}

// CommonalityInfo names the lot and wafer populations a commonality run
// compared.
type CommonalityInfo struct {
	GoodLots   []string `json:"good_lots"`
	BadLots    []string `json:"bad_lots"`
	GoodWafers []string `json:"good_wafers"`
	BadWafers  []string `json:"bad_wafers"`
}

// Commonality flattens the trend series into one table (each row tagged with
// its PARA) and pairs it with the good/bad population summary.
func Commonality() ([]Row, CommonalityInfo) {
	var table []Row
	for para, rows := range PCMTrend() {
		for _, r := range rows {
			row := make(Row, len(r)+1)
			for k, v := range r {
				row[k] = v
			}
			row["PARA"] = para
			table = append(table, row)
		}
	}
	info := CommonalityInfo{
		GoodLots:   []string{"LOT001", "LOT002", "LOT003"},
		BadLots:    []string{"LOT004", "LOT005"},
		GoodWafers: []string{"WAFER001", "WAFER002", "WAFER003"},
		BadWafers:  []string{"WAFER004", "WAFER005"},
	}
	return table, info
}

// pcmPointValues is the fixed site/value walk the point chart renders.
var pcmPointValues = []int{
	10, 11, 12, 13, 14,
	11, 12, 13, 14, 15,
	10, 11, 12, 13, 14,
	12, 13, 14, 15, 16,
	14, 13, 13, 12, 11,
}

// PCMPoint returns the fixed per-site measurement walk. Sites cycle 1..5.
func PCMPoint() []Row {
	rows := make([]Row, 0, len(pcmPointValues))
	for i, v := range pcmPointValues {
		rows = append(rows, Row{
			"DATE_WAFER_ID": fmt.Sprintf("2025-06-%d:36:57:54_A12345678998999", i+1),
			"PCM_SITE":      fmt.Sprintf("%d", i%5+1),
			"VALUE":         v,
		})
	}
	return rows
}

// PCMToTrend builds per-parameter box series for the compound to-trend view,
// with route/operation/chamber context on every row.
func PCMToTrend() map[string][]Row {
	routes := []string{"route1", "route2", "route3"}
	opers := []string{"oper1", "oper2", "oper3", "oper4"}
	chambers := []string{"P0", "P1", "P2"}

	data := make(map[string][]Row, 3)
	for _, para := range []string{"PARA_A", "PARA_B", "PARA_C"} {
		rows := make([]Row, 0, 15)
		for i := 1; i <= 15; i++ {
			min := round4(350 + rand.Float64()*100)
			max := round4(600 + rand.Float64()*100)
			q1 := round4(min + 30 + rand.Float64()*50)
			q2 := round4(q1 + 30 + rand.Float64()*50)
			q3 := round4(q2 + 30 + rand.Float64()*(max-q2-60))
			rows = append(rows, Row{
				"key":             fmt.Sprintf("%d", i),
				"MAIN_ROUTE_DESC": pick(routes...),
				"MAIN_OPER_DESC":  pick(opers...),
				"EQ_CHAM":         pick(chambers...),
				"PARA":            para,
				"MIN":             min,
				"MAX":             max,
				"Q1":              q1,
				"Q2":              q2,
				"Q3":              q3,
				"USL":             inlineUSL,
				"TGT":             inlineTGT,
				"LSL":             inlineLSL,
				"UCL":             inlineUCL,
				"LCL":             360,
			})
		}
		data[para] = rows
	}
	return data
}

// Empty-table scenarios for the dual-table view.
const (
	ScenarioEmptyLotHold   = "empty_lot_hold"
	ScenarioEmptyPEConfirm = "empty_pe_confirm"
	ScenarioBothEmpty      = "both_empty"
)

// TwoTables builds the lot-hold and PE-confirm tables. A non-empty scenario
// blanks one or both tables so the front end's empty states can be exercised
// deterministically.
func TwoTables(scenario string) (lotHold, peConfirm []Row) {
	lotHold = make([]Row, 0, 15)
	for i := 1; i <= 15; i++ {
		lotHold = append(lotHold, Row{
			"LOT_ID":        fmt.Sprintf("LOT_%03d", i),
			"HOLD_REASON":   pick("QUALITY_ISSUE", "EQUIPMENT_MAINT", "MATERIAL_SHORTAGE", "PROCESS_DEVIATION"),
			"HOLD_DATE":     fmt.Sprintf("2024-12-%02d", rand.IntN(31)+1),
			"HOLD_STATUS":   pick("ACTIVE", "RELEASED", "CANCELLED"),
			"PRIORITY":      pick("HIGH", "MEDIUM", "LOW"),
			"WAFER_COUNT":   rand.IntN(16) + 10,
			"AFFECTED_STEP": pick("PHOTO", "ETCH", "DIFFUSION", "METAL"),
			"OWNER":         pick("ENGINEER_A", "ENGINEER_B", "ENGINEER_C"),
		})
	}

	peConfirm = make([]Row, 0, 11)
	for i := 1; i <= 11; i++ {
		peConfirm = append(peConfirm, Row{
			"MODULE_ID":      fmt.Sprintf("PE_MOD_%02d", i),
			"CONFIRM_STATUS": pick("CONFIRMED", "PENDING", "REJECTED"),
			"CONFIRM_DATE":   fmt.Sprintf("2024-12-%02d", rand.IntN(31)+1),
			"PARAMETER_NAME": pick("TEMPERATURE", "PRESSURE", "FLOW_RATE", "POWER"),
			"TARGET_VALUE":   round2(100 + rand.Float64()*400),
			"ACTUAL_VALUE":   round2(95 + rand.Float64()*410),
			"TOLERANCE":      round1(5 + rand.Float64()*10),
			"RESULT":         pick("PASS", "FAIL", "WARNING"),
			"INSPECTOR":      pick("INSPECTOR_X", "INSPECTOR_Y", "INSPECTOR_Z"),
		})
	}

	switch scenario {
	case ScenarioEmptyLotHold:
		lotHold = nil
	case ScenarioEmptyPEConfirm:
		peConfirm = nil
	case ScenarioBothEmpty:
		lotHold, peConfirm = nil, nil
	}
	return lotHold, peConfirm
}

// InlineTrendInitial builds device-grouped boxplot rows, five samples per
// device.
func InlineTrendInitial() []Row {
	return inlineBoxRows("DEVICE", []string{"DEVICE_A", "DEVICE_B", "DEVICE_C"})
}

// InlineTrendFollowup builds boxplot rows grouped by the requested criteria
// column. Unknown criteria fall back to DEVICE grouping.
func InlineTrendFollowup(criteria string) []Row {
	var values []string
	switch criteria {
	case "MAIN_EQ":
		values = []string{"EQ_001", "EQ_002", "EQ_003", "EQ_004"}
	case "PARA":
		values = []string{"PARA_X", "PARA_Y", "PARA_Z"}
	case "EQ_CHAM":
		values = []string{"P0", "P1", "P2", "P3"}
	case "OPER":
		values = []string{"OPER_1", "OPER_2", "OPER_3"}
	case "ROUTE":
		values = []string{"ROUTE_A", "ROUTE_B", "ROUTE_C"}
	default:
		criteria = "DEVICE"
		values = []string{"DEVICE_A", "DEVICE_B", "DEVICE_C"}
	}
	return inlineBoxRows(criteria, values)
}

func inlineBoxRows(criteria string, values []string) []Row {
	rows := make([]Row, 0, len(values)*5)
	for i, val := range values {
		bases := []float64{380 + float64(i)*20, 420 + float64(i)*20, 460 + float64(i)*20}
		for j := 0; j < 5; j++ {
			rows = append(rows, Row{
				"key":     fmt.Sprintf("2024-01-%02d 10:00:00", i*5+j+1),
				"FOR_KEY": "P1931.52926.5",
				criteria:  val,
				"NO_VAL1": round3(bases[0] + jitter(30)),
				"NO_VAL2": round3(bases[1] + jitter(30)),
				"NO_VAL3": round3(bases[2] + jitter(30)),
				"NO_VAL4": round3(bases[0] + jitter(25)),
				"NO_VAL5": round3(bases[1] + jitter(25)),
				"USL":     inlineUSL,
				"LSL":     inlineLSL,
				"TGT":     inlineTGT,
				"UCL":     inlineUCL,
				"LCL":     inlineLCL,
			})
		}
	}
	return rows
}

// InlineAnalysis builds the process-performance time series.
func InlineAnalysis() []Row {
	rows := make([]Row, 0, 15)
	for i := 1; i <= 15; i++ {
		rows = append(rows, Row{
			"timestamp":              fmt.Sprintf("2024-01-%02d", i),
			"critical_path_length":   round2(10 + rand.Float64()*10),
			"performance_score":      round3(0.7 + rand.Float64()*0.25),
			"bottleneck_count":       rand.IntN(5) + 1,
			"optimization_potential": round3(0.1 + rand.Float64()*0.2),
		})
	}
	return rows
}

// CPKAchieveRate builds per-parameter capability summaries.
func CPKAchieveRate() []Row {
	rows := make([]Row, 0, 6)
	for i := 1; i <= 6; i++ {
		cpk := round3(0.8 + rand.Float64()*0.9)
		rows = append(rows, Row{
			"PARA":         fmt.Sprintf("PARA%d", i),
			"CPK":          cpk,
			"TARGET_CPK":   1.33,
			"ACHIEVE_RATE": round3(min(cpk/1.33, 1) * 100),
			"SAMPLE_COUNT": rand.IntN(400) + 100,
		})
	}
	return rows
}

// RAGFileHit is one document match from the retrieval index.
type RAGFileHit struct {
	FileName   string  `json:"file_name"`
	FilePath   string  `json:"file_path"`
	Similarity float64 `json:"similarity"`
}

// RAGSearch returns the ranked document matches for a retrieval query.
func RAGSearch() []RAGFileHit {
	return []RAGFileHit{
		{FileName: "example1.pdf", FilePath: "/static/docs/example1.pdf", Similarity: 0.98},
		{FileName: "example2.pdf", FilePath: "/static/docs/example2.pdf", Similarity: 0.92},
		{FileName: "example3.pdf", FilePath: "/static/docs/example3.pdf", Similarity: 0.89},
	}
}

func pick(options ...string) string {
	return options[rand.IntN(len(options))]
}

func jitter(spread float64) float64 {
	return (rand.Float64()*2 - 1) * spread
}

func round1(v float64) float64 { return roundTo(v, 10) }
func round2(v float64) float64 { return roundTo(v, 100) }
func round3(v float64) float64 { return roundTo(v, 1000) }
func round4(v float64) float64 { return roundTo(v, 10000) }

func roundTo(v float64, scale float64) float64 {
	return float64(int64(v*scale+0.5)) / scale
}
