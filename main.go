// Copyright (c) Andreas Eckleder 2018, 2024. All rights reserved.

package main

import "github.com/weirdsoul/uno2iec/cmd"

func main() {
	cmd.Execute()
}
