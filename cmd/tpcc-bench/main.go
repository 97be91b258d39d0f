package main

import (
	"github.com/hhkbp2/tpccbench"
	"github.com/hhkbp2/tpccbench/binding"
)

func main() {
	binding.AddBindings()
	tpccbench.Main()
}
