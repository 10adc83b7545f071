package output

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Table 终端表格，按显示宽度对齐（中文与emoji占两列）
type Table struct {
	headers  []string
	rows     [][]string
	widths   []int
	maxWidth map[int]int
	colorFns map[int]func(cell string) *color.Color
}

// NewTable 创建表格
func NewTable(headers []string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = displayWidth(h)
	}
	return &Table{
		headers:  headers,
		widths:   widths,
		maxWidth: make(map[int]int),
		colorFns: make(map[int]func(string) *color.Color),
	}
}

// SetMaxWidth 限制某列宽度，超出部分以…截断
func (t *Table) SetMaxWidth(col, width int) *Table {
	if width > 1 {
		t.maxWidth[col] = width
	}
	return t
}

// SetColor 按单元格内容为某列着色，fn返回nil时不着色
func (t *Table) SetColor(col int, fn func(cell string) *color.Color) *Table {
	t.colorFns[col] = fn
	return t
}

// AddRow 添加行
func (t *Table) AddRow(row []string) {
	cells := make([]string, len(row))
	for i, cell := range row {
		if max, ok := t.maxWidth[i]; ok {
			cell = truncate(cell, max)
		}
		cells[i] = cell
		if i < len(t.widths) {
			if w := displayWidth(cell); w > t.widths[i] {
				t.widths[i] = w
			}
		}
	}
	t.rows = append(t.rows, cells)
}

// Render 输出到Writer
func (t *Table) Render() {
	headerColor := color.New(color.FgCyan, color.Bold)
	for i, h := range t.headers {
		headerColor.Fprint(Writer, pad(h, t.widths[i]))
	}
	fmt.Fprintln(Writer)

	for i := range t.headers {
		fmt.Fprint(Writer, strings.Repeat("-", t.widths[i])+"  ")
	}
	fmt.Fprintln(Writer)

	for _, row := range t.rows {
		for i, cell := range row {
			if i >= len(t.widths) {
				break
			}
			text := pad(cell, t.widths[i])
			if fn := t.colorFns[i]; fn != nil {
				if c := fn(cell); c != nil {
					c.Fprint(Writer, text)
					continue
				}
			}
			fmt.Fprint(Writer, text)
		}
		fmt.Fprintln(Writer)
	}
}

func pad(s string, width int) string {
	return s + strings.Repeat(" ", width-displayWidth(s)+2)
}

func truncate(s string, max int) string {
	if displayWidth(s) <= max {
		return s
	}
	var b strings.Builder
	w := 0
	for _, r := range s {
		rw := runeWidth(r)
		if w+rw > max-1 {
			break
		}
		b.WriteRune(r)
		w += rw
	}
	return b.String() + "…"
}

func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		w += runeWidth(r)
	}
	return w
}

// runeWidth CJK、全角符号与emoji按两列计算
func runeWidth(r rune) int {
	switch {
	case r >= 0x1100 && r <= 0x115F,
		r >= 0x2E80 && r <= 0xA4CF,
		r >= 0xAC00 && r <= 0xD7A3,
		r >= 0xF900 && r <= 0xFAFF,
		r >= 0xFF00 && r <= 0xFF60,
		r >= 0x1F300 && r <= 0x1FAFF:
		return 2
	}
	return 1
}
