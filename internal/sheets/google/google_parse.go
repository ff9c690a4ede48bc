package google

import (
	"fmt"
	"strconv"
	"strings"
)

// indexRows maps transaction ids in column A to 1-based sheet row numbers.
// values[0] is sheet row 1, the header.
func indexRows(values [][]interface{}) map[string]int {
	out := make(map[string]int, len(values))
	for i, row := range values {
		if i == 0 || len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(row[0]))
		if id == "" {
			continue
		}
		if _, dup := out[id]; !dup {
			out[id] = i + 1
		}
	}
	return out
}

// rowNumberFromRange extracts the first row number of an A1 range such as
// "'2024 Transacoes'!A12:K12".
func rowNumberFromRange(a1 string) (int, error) {
	cells := a1
	if i := strings.LastIndex(a1, "!"); i >= 0 {
		cells = a1[i+1:]
	}
	if i := strings.Index(cells, ":"); i >= 0 {
		cells = cells[:i]
	}
	digits := strings.TrimLeft(cells, "ABCDEFGHIJKLMNOPQRSTUVWXYZ$")
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("no row number in range %q", a1)
	}
	return n, nil
}

// columnName converts a 1-based column index to its letter form.
func columnName(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// quoteSheet quotes a sheet name for use in A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func rowRange(sheet string, row, width int) string {
	return fmt.Sprintf("%s!A%d:%s%d", quoteSheet(sheet), row, columnName(width), row)
}

func toInterfaces(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
