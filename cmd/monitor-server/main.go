package main

import "github.com/oshokin/equipment-monitor/cmd/monitor-server/cmd"

func main() {
	cmd.Execute()
}
