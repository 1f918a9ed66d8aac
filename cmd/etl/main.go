// Command etl loads flat files into a relational database or a data lake.
//
//	etl run -c customers.yaml -c orders.yaml
//	etl validate -c customers.yaml
//	etl infer --format csv --path customers.csv
//	etl status 6f1c0c4e-...
package main

import (
	"fmt"
	"os"

	// register every sink and dialect; the job document picks one.
	_ "github.com/YogovAI/Product-Development-Yogov/internal/storage/all"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
