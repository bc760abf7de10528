package main

import (
	"github.com/opentracker-es/opentracker-api/client/pkg/cmd"
	"log"
)

func main() {
	rootCmd := cmd.New()
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
