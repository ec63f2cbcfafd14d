// Kestrel - Model-risk monitoring plans, cycles and threshold breaches.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"fmt"
	"os"

	"github.com/opensource-finance/kestrel/internal/client"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", client.DisplayMessage(err, err.Error()))
		os.Exit(1)
	}
}
