// Package radio implements the provisioning session's radio backends.
//
// Three drivers satisfy provision.Radio:
//
//   - NMCLI drives NetworkManager through nmcli. It also owns the setup
//     hotspot connection: the hotspot is taken down before joining a network
//     and optionally restored when the join fails.
//   - WPA talks to wpa_supplicant over D-Bus (see the wpa subpackage).
//   - Mock returns canned networks for development.
//
// Every driver also implements LinkReporter. NL80211Reporter is an
// alternative reporter that reads station state straight from the kernel.
//
// Errors returned by Connect carry short messages such as
// "authentication failed" that are shown to the user unchanged.
package radio
