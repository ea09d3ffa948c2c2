package main

import (
	"github.com/fluxfox-go/fluxfox/adapter"

	_ "github.com/fluxfox-go/fluxfox/greaseweazle"
	_ "github.com/fluxfox-go/fluxfox/kryoflux"
	_ "github.com/fluxfox-go/fluxfox/supercardpro"
)

func main() {
	adapter.Execute()
}
