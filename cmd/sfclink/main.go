// # cmd/sfclink/main.go
package main

import (
	"context"
	"os"

	"sfclink/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(context.Background(), os.Args))
}
