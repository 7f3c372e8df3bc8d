package main

import (
	"github.com/flare-foundation/go-flare-common/pkg/logger"

	"github.com/flare-foundation/checkpoint-indexer/pkg/framework"
)

func main() {
	if err := framework.Run(); err != nil {
		logger.Fatal(err)
	}
}
