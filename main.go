package main

import "todo-app/cmd"

func main() {
	cmd.Execute()
}
