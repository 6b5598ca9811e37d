// Command trajeval scores agent tool trajectories against ground-truth flows.
package main

import "github.com/geoplan-bench/trajeval/internal/cli"

func main() {
	cli.Execute()
}
