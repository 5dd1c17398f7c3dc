package main

import "github.com/einstein-academy/course-registration/cmd"

func main() {
	cmd.Execute()
}
