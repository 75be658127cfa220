package main

import (
	"os"

	"github.com/rubikalib/client-go/cmd/rubika/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
