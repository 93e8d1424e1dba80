package main

import (
	"os"

	"github.com/glassview-analytics/glassview/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
