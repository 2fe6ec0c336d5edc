// Package main provides the entry point for bpsim.
// bpsim replays retired-instruction traces through five branch predictors
// and reports prediction, register toggle and dependency stall statistics.
//
// For the full CLI, use: go run ./cmd/bpsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("bpsim - Trace-Driven Branch Predictor Telemetry")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: bpsim [options] <trace> [<trace> ...]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config      Path to telemetry configuration file (JSON or YAML)")
	fmt.Println("  -max-inst    Stop after this many instructions")
	fmt.Println("  -history     Global history bits of variant v")
	fmt.Println("  -table-bits  Log2 of predictor table entries")
	fmt.Println("  -out         Directory for the offset histogram")
	fmt.Println("  -json        Print statistics as JSON")
	fmt.Println("  -v           Log verbosity")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/bpsim' for the full CLI.")
	fmt.Println("Run 'go run ./cmd/benchmark' for the synthetic workload harness.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/bpsim' instead.")
	}
}
