// Package slid provides Smart Linked Item Distribution machinery: container
// networks with ordered filter pipelines that route items out of a master
// container into satellites.
//
// The core code is in packages 'filter', 'network', and 'distrib', and some
// command-line tools are in `cmd`.
package slid
