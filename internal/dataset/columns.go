package dataset

import (
	"strings"
)

// column identifies a logical field of a source table. Source files carry
// the Ministry of the Interior export headers in Chinese; English headers
// are accepted as well so hand-built fixtures stay readable.
type column string

const (
	colSerial       column = "serial"
	colCity         column = "city"
	colDistrict     column = "district"
	colName         column = "name"
	colUnits        column = "units"
	colSelfSale     column = "self_sale_start"
	colAgentSale    column = "agent_sale_start"
	colRegistration column = "registration_date"
	colPermit       column = "permit_date"
	colTxDate       column = "transaction_date"
	colCancel       column = "cancellation"
	colTotalPrice   column = "total_price"
	colUnitPrice    column = "unit_price"
	colPeriod       column = "period"
)

// columnTitles holds the canonical export header per column, used when
// reporting missing columns.
var columnTitles = map[column]string{
	colSerial:       "編號",
	colCity:         "縣市",
	colDistrict:     "行政區",
	colName:         "社區名稱",
	colUnits:        "戶數",
	colSelfSale:     "自售起始時間",
	colAgentSale:    "代銷起始時間",
	colRegistration: "備查完成日期",
	colPermit:       "建照核發日",
	colTxDate:       "交易年月日",
	colCancel:       "解約情形",
	colTotalPrice:   "總價元",
	colUnitPrice:    "單價元",
	colPeriod:       "銷售期間",
}

// columnAlias pairs one header spelling with its column. Order matters:
// the first alias that matches a header cell wins, so the more specific
// spellings come first.
type columnAlias struct {
	col   column
	alias string
}

var columnAliases = []columnAlias{
	{colSelfSale, "自售起始時間"},
	{colSelfSale, "自售"},
	{colAgentSale, "代銷起始時間"},
	{colAgentSale, "代銷"},
	{colRegistration, "備查完成日期"},
	{colRegistration, "備查"},
	{colPermit, "建照核發日"},
	{colPermit, "建照"},
	{colTxDate, "交易年月日"},
	{colTotalPrice, "總價元"},
	{colTotalPrice, "交易總價"},
	{colUnitPrice, "單價元"},
	{colUnitPrice, "單價"},
	{colCancel, "解約情形"},
	{colCancel, "解約"},
	{colUnits, "戶數"},
	{colName, "社區名稱"},
	{colName, "建案名稱"},
	{colName, "社區簡稱"},
	{colDistrict, "行政區"},
	{colDistrict, "鄉鎮市區"},
	{colCity, "縣市"},
	{colSerial, "編號"},
	{colPeriod, "銷售期間"},
	{colPeriod, "期別"},

	{colSerial, "serial"},
	{colSerial, "id"},
	{colCity, "city"},
	{colCity, "county"},
	{colDistrict, "district"},
	{colDistrict, "town"},
	{colName, "name"},
	{colName, "project"},
	{colUnits, "units"},
	{colUnits, "households"},
	{colSelfSale, "self_sale_start"},
	{colAgentSale, "agent_sale_start"},
	{colRegistration, "registration_date"},
	{colPermit, "permit_date"},
	{colTxDate, "transaction_date"},
	{colTxDate, "date"},
	{colCancel, "cancelled"},
	{colCancel, "cancellation"},
	{colTotalPrice, "total_price"},
	{colUnitPrice, "unit_price"},
	{colPeriod, "period"},
}

// The identifier column is required on both sides: without it the primary
// linkage key is gone for the whole table, which is a structural failure
// rather than a row defect.
var projectColumns = []column{colSerial, colCity, colDistrict, colName, colUnits}

var transactionColumns = []column{colSerial, colCity, colDistrict, colName, colTxDate}

// matchColumn maps one header cell to a column. Parking-stall columns
// (車位總價元 and friends) would otherwise collide with the price columns,
// so they never match.
func matchColumn(header string) (column, bool) {
	cleaned := strings.ToLower(cleanCell(header))
	if cleaned == "" || strings.Contains(cleaned, "車位") {
		return "", false
	}
	for _, ca := range columnAliases {
		if isASCII(ca.alias) {
			if cleaned == ca.alias {
				return ca.col, true
			}
			continue
		}
		if strings.Contains(cleaned, ca.alias) {
			return ca.col, true
		}
	}
	return "", false
}

// findHeader scans the leading rows of a table for the header row that
// carries every required column. It returns the column index map and the
// header row position. When no row qualifies it reports the columns
// missing from the closest candidate.
func findHeader(rows [][]string, required []column) (map[column]int, int, []string) {
	const scanRows = 10

	bestMissing := titlesOf(required)
	for i := 0; i < len(rows) && i < scanRows; i++ {
		index := make(map[column]int)
		for j, cell := range rows[i] {
			col, ok := matchColumn(cell)
			if !ok {
				continue
			}
			if _, seen := index[col]; !seen {
				index[col] = j
			}
		}

		var missing []string
		for _, col := range required {
			if _, ok := index[col]; !ok {
				missing = append(missing, columnTitles[col])
			}
		}
		if len(missing) == 0 {
			return index, i, nil
		}
		if len(missing) < len(bestMissing) {
			bestMissing = missing
		}
	}
	return nil, -1, bestMissing
}

func titlesOf(cols []column) []string {
	titles := make([]string, len(cols))
	for i, col := range cols {
		titles[i] = columnTitles[col]
	}
	return titles
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return true
}

// cleanCell normalizes one cell: strips the UTF-8 BOM, surrounding
// whitespace, and stray quoting that survives spreadsheet exports.
func cleanCell(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}
