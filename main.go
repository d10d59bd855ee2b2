/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/librarium/usermanagement/cmd"

func main() {
	cmd.Execute()
}
