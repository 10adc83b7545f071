package output

import (
	"encoding/json"
	"io"
	"os"

	"github.com/fatih/color"
)

// Writer 输出目标，测试中可替换
var Writer io.Writer = os.Stdout

// PrintJSON 输出JSON格式
func PrintJSON(data any) error {
	encoder := json.NewEncoder(Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// PrintRawJSON 缩进输出原始JSON
func PrintRawJSON(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return PrintJSON(v)
}

// Success 输出成功消息
func Success(format string, args ...any) {
	green := color.New(color.FgGreen, color.Bold)
	green.Fprintf(Writer, "✅ "+format+"\n", args...)
}

// Error 输出错误消息
func Error(format string, args ...any) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprintf(Writer, "❌ "+format+"\n", args...)
}

// Info 输出信息
func Info(format string, args ...any) {
	cyan := color.New(color.FgCyan)
	cyan.Fprintf(Writer, "ℹ️  "+format+"\n", args...)
}

// Warning 输出警告
func Warning(format string, args ...any) {
	yellow := color.New(color.FgYellow)
	yellow.Fprintf(Writer, "⚠️  "+format+"\n", args...)
}
