// Command swapctl is the operator tool for the exchange database: it audits
// book status drift, explains trust scores and seeds demo data.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
