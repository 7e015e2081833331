package main

import (
	"os"

	"github.com/dmitrijs2005/immichup/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
