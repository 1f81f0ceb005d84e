package main

import (
	"log"

	"loanops/internal/app"
)

// @title                       loanops API
// @version                     1.0
// @description                 Lead pipeline, USSD intake and core-banking proxy.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("loanops: %v", err)
	}
}
