package main

import (
	"log"

	"ticket-admin/cmd"
	_ "ticket-admin/migrations"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
