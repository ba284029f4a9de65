package main

import "clinic/internal/app/server"

func main() {
	server.Run()
}
