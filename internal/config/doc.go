// Package config stores wledui's state between runs in a YAML file.
//
// The file lives in the platform config directory (see GetConfigDir) and
// holds the saved board list, the last refresh time, the network range and
// test IP last typed into the discovery form, and user preferences.
//
// Registry implements store.Persister, so the board store writes through it.
//
// Example config.yaml:
//
//	version: 1
//	boards:
//	  - id: a1b2c3d4e5f6
//	    name: Desk
//	    ip: 192.168.1.40
//	    mac: a1b2c3d4e5f6
//	    firmware: 0.14.0
//	network_range: 192.168.1
//	preferences:
//	  discovery_timeout: 2s
//	  default_port: 80
//	  default_network_range: 192.168.4
//	  max_in_flight: 24
//	  auto_discover: true
//	  auto_refresh_interval: 30s
//	  max_boards_display: 50
//	  listen_addr: 127.0.0.1:8080
//	  debug: false
package config
