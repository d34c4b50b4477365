// cmd/blastdbbuilder/main.go
package main

import (
	"blastdbbuilder/internal/app"
	"blastdbbuilder/internal/appshell"
)

func main() { appshell.Main(app.RunContext) }
