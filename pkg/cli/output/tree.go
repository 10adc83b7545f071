package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/LENAX/task-visualizer/pkg/core/describe"
)

// PrintTree 以树形输出描述符森林，运行中的任务标绿
func PrintTree(forest []*describe.Descriptor) {
	running := color.New(color.FgGreen, color.Bold)
	idle := color.New(color.FgWhite)
	faint := color.New(color.Faint)

	for i, root := range forest {
		printNode(root, "", i == len(forest)-1, true, running, idle, faint)
	}
}

func printNode(d *describe.Descriptor, prefix string, last, root bool, running, idle, faint *color.Color) {
	branch, next := "├── ", prefix+"│   "
	if last {
		branch, next = "└── ", prefix+"    "
	}
	if root {
		branch, next = "", ""
	}

	icon, c := "○", idle
	if d.IsRunning {
		icon, c = "●", running
	}
	fmt.Fprint(Writer, prefix+branch)
	c.Fprintf(Writer, "%s %s", icon, d.Name)
	faint.Fprintf(Writer, " [%s #%d]%s\n", d.Kind, d.ID, formatParams(d.Parameters))

	for i, sub := range d.SubCommands {
		printNode(sub, next, i == len(d.SubCommands)-1, false, running, idle, faint)
	}
}

func formatParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return " " + strings.Join(parts, " ")
}
