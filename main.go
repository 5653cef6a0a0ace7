package main

import "github.com/Taichi-iskw/lesson-media/cmd"

func main() {
	cmd.Execute()
}
