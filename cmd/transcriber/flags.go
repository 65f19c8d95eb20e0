package main

import (
	"fmt"

	"github.com/spf13/pflag"
)

// bind ties a flag to a configuration key so that an explicit flag wins
// over the config file and environment.
func (a *app) bind(flag *pflag.Flag, key string) {
	if err := a.v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag.Name, err))
	}
}
