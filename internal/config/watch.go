package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var watchOnce sync.Once

// Watch reloads the configuration whenever the config file changes and
// hands the new value to onChange. A change that fails validation is
// dropped and reported through onError; the previous configuration
// stays in effect. Watch may be called once per process.
func Watch(onChange func(*Config), onError func(error)) {
	watchOnce.Do(func() {
		viper.OnConfigChange(func(fsnotify.Event) {
			cfg, err := Load()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				return
			}
			if onChange != nil {
				onChange(cfg)
			}
		})
		viper.WatchConfig()
	})
}
