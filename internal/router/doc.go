// Package router resolves inbound request paths to logical service names
// using the static route table.
package router
