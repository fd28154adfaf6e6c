// Package tools holds the call and result types exchanged between the
// continuation controller and tool backends (registry functions and MCP
// servers), the executor interface they implement, and the allowed-tools
// list.
package tools
