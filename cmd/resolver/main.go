package main

import (
	"context"

	"premises-geocoder/cmd/resolver/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
