package main

import (
	"log"

	"github.com/obiente/whisperbridge/cmd/whisperbridge"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	whisperbridge.Execute()
}
