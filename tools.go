//go:build tools

// Package tools фиксирует версии генераторов кода в go.mod
package tools

import (
	_ "github.com/vektra/mockery/v2"
)
