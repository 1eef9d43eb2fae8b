// Package viz renders sieve results in the terminal.
//
//   - lipgloss styles and a device capability panel ([RenderCapability])
//   - asciigraph charts of pi(x) and benchmark throughput
//   - [Explorer]: a Bubble Tea view that re-sieves as the bound changes
//
// # Key Bindings
//
//	↑/↓ - Double/halve the bound
//	←/→ - Step the bound by one
//	P   - Toggle the pi(x) chart
//	R   - Sieve the current bound again
//	Q   - Quit
package viz
