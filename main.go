// Copyright (C) 2024-2025, Iron Fish. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"github.com/iron-fish/snapshotter/cmd"
)

func main() {
	cmd.Execute()
}
