// Command menudigital はデジタルメニューSaaSのAPIサーバーとワーカーを起動する。
//
// 使い方:
//
//	menudigital [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/menudigital/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "menudigital: %v\n", err)
		os.Exit(1)
	}
}
