// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/audiotour/placegeo/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
