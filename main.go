package main

import "github.com/nthpaul/stock-sentiment-dash/internal/cli"

func main() {
	cli.Execute()
}
