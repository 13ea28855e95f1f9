// Command batepapo はチャットルームの在室管理とメッセージAPIを提供する。
//
// 使い方:
//
//	batepapo [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/larissaalvesm/projeto13-batepapo-uol-api/internal/app"
)

func main() {
	if err := app.Run(os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "batepapo: %v\n", err)
		os.Exit(1)
	}
}
