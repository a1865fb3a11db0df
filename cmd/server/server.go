package main

import (
	"log"

	"github.com/bypptech/group-wallet-organizer/cmd/serverrun"
)

func main() {
	if err := serverrun.Run(); err != nil {
		log.Fatal(err)
	}
}
