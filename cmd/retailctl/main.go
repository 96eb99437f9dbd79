package main

import (
	"github.com/ariefcatur/go-retail-orders/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cli.Execute()
}
