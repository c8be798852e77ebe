// Package config loads the wifiprov server configuration.
//
// Settings are layered with spf13/viper, later sources winning:
//
//  1. Built-in defaults (see Default)
//  2. A YAML file: --config, else $XDG_CONFIG_HOME/wifiprov/config.yaml,
//     else /etc/wifiprov/config.yaml
//  3. WIFIPROV_* environment variables (dots become underscores, so
//     radio.driver is WIFIPROV_RADIO_DRIVER)
//  4. Command line flags listed in FlagKeys
//
// # Configuration File Location
//
// The user configuration file follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/wifiprov/config.yaml or $HOME/.config/wifiprov/config.yaml
//   - macOS: $HOME/.config/wifiprov/config.yaml
//   - Windows: %LOCALAPPDATA%\wifiprov\config.yaml
//
// # Example
//
//	server:
//	  listen: ":8080"
//	radio:
//	  driver: nmcli
//	  interface: wlan0
//	session:
//	  scan_timeout: 10s
//	  connect_timeout: 30s
//	access_point:
//	  connection: Hotspot
//	  start_on_boot: true
//
// Save writes files atomically with 0600 permissions since the mqtt section
// may hold a broker password.
package config
