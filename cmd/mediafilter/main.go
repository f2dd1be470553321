package main

import (
	"os"

	"github.com/solatis/mediafilter/cmd/mediafilter/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
