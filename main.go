/*
	Copyright 2023 Markus Papenbrock
*/

package main

import "github.com/mpapenbr/zenride/cmd"

func main() {
	cmd.Execute()
}
