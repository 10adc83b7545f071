package main

import "github.com/LENAX/task-visualizer/pkg/cli/cmd"

func main() {
	cmd.Execute()
}
