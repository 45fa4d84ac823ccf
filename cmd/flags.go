package cmd

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// bindFlags binds viper keys to the named flags in fs. Bindings are
// established during command init, so a missing flag is a programmer
// error and panics.
func bindFlags(fs *pflag.FlagSet, bindings map[string]string) {
	for key, name := range bindings {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(err)
		}
	}
}
