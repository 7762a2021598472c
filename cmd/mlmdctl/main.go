// Command mlmdctl is the operator boundary for the metadata store: schema
// initialization, migration, and catalog override validation, none of which
// belong behind the request-serving Store interface itself.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/mlmetastore/mlmd/cmd/mlmdctl/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := cmd.NewRootCommand().ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}
