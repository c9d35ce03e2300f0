package main

import "worklogbot/internal/app"

func main() {
	app.Main()
}
