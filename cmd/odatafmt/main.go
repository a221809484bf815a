// Command odatafmt formats expression and query documents into OData URI
// query syntax.
//
//	odatafmt filter --schema northwind.yaml --collection Products filter.yaml
//	odatafmt query --dsn sqlite:shop.db query.yaml
//	odatafmt schema --dsn sqlite:shop.db
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
