// Package report 导出报表：CSV 编码与管理员已批准访问报表
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoData 没有可导出的记录
var ErrNoData = errors.New("no approved requests to export")

// NoDataNotice ErrNoData 对应的用户提示
const NoDataNotice = "There are no approved requests to export."

// EncodeCSV 按列名顺序写出 CSV
//
// 字段含逗号、换行或双引号时才加引号，引号加倍；nil 写为空串。
// 行之间以 "\n" 分隔，末行不带换行。rows 为空时返回 ErrNoData。
func EncodeCSV(w io.Writer, headers []string, rows [][]any) error {
	if len(rows) == 0 {
		return ErrNoData
	}

	var b strings.Builder
	writeRow := func(fields []string) {
		for i, f := range fields {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(escapeField(f))
		}
	}

	writeRow(headers)
	for i, row := range rows {
		if len(row) != len(headers) {
			return fmt.Errorf("row %d has %d fields, want %d", i, len(row), len(headers))
		}
		b.WriteByte('\n')
		fields := make([]string, len(row))
		for j, v := range row {
			fields[j] = formatField(v)
		}
		writeRow(fields)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case *string:
		if t == nil {
			return ""
		}
		return *t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func escapeField(s string) string {
	if !strings.ContainsAny(s, ",\n\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
