/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/pratyush314/acquisitions/cmd"

func main() {
	cmd.Execute()
}
