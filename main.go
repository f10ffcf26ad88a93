/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/campus-incidents/apiserver/cmd"

func main() {
	cmd.Execute()
}
