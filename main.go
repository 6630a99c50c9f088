package main

import (
	"log"

	"yashubustudio/nertally/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
