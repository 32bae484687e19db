package main

import "github.com/andresmejia3/faceseed/cmd"

func main() {
	cmd.Execute()
}
