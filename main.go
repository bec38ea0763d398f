package main

import (
	"log"
	"screening-system/cmd"

	_ "screening-system/migrations"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
