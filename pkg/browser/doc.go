// Package browser abstracts the remote-controlled browser behind Driver.
//
// Tabs are addressed by Handle. Rod implements Driver with go-rod and either
// launches a local Chrome or attaches to one through a DevTools control URL.
// Fake is an in-memory Driver used by the package tests across the module.
package browser
