// Command leaptrust scores the trustworthiness of tabular datasets bound
// for BI tools.
package main

import "github.com/leapstack-labs/leaptrust/internal/cli"

func main() {
	cli.Execute()
}
