package main

import (
	"context"

	"chattysync/cmd/chatty-cli/commands"
	"chattysync/internal/components/telemetry"
)

func main() {
	telemetry.InitSlog(false)
	commands.ExecuteContext(context.Background())
}
