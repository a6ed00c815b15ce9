// Command astmsim simulates a clinical laboratory analyzer speaking the
// ASTM E1381/LIS2-A2 protocol. It serves bridge connections over TCP or a
// serial line, pushes generated result messages to a listening bridge, and
// renders result content as ASTM, HL7, or delimited files for inspection.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
