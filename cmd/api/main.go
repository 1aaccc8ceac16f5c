package main

import (
	"log"
	"os"
)

func main() {
	err := run()
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	return newRootCmd().Execute()
}
