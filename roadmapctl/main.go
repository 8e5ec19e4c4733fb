package main

import "roadmap-planner/roadmapctl/cmd"

func main() {
	cmd.Execute()
}
