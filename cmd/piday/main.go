package main

import (
	"os"

	"github.com/benshaw2/PiDay/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
