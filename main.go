package main

import (
	"strings"

	"github.com/spf13/viper"

	"code-intelligence.com/fuzzgate/internal/cmd/root"
)

func init() {
	viper.SetEnvPrefix("FUZZGATE")
	viper.AutomaticEnv()
	// need to make FUZZGATE_MY_VAR available as viper.Get("my-var")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

func main() {
	root.Execute()
}
