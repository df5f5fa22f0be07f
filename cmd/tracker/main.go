package main

import (
	"context"
	"mostracker/cmd/tracker/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
