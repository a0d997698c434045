package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) pruneCompletions() error {
	n, err := cli.todoSvc.PruneCompletions(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d orphaned completion(s)\n", n)
	return nil
}
