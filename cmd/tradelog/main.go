package main

import (
	"os"

	"github.com/qsor27/FuturesTradingLog-sub002/cmd/tradelog/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
