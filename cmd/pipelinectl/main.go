package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/fashionos/sponsor-crm/internal/cli"
)

func main() {
	if err := cli.NewRootCommand(cli.OpenPostgres).Execute(); err != nil {
		os.Exit(1)
	}
}
