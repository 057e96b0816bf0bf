// Package generator simulates stream-based anonymous communication and
// produces ground-truth traces for the anonymity metric.
//
// A simulation has three stages:
//
//  1. Sources: every source waits for a sampled start delay and then sends
//     a sampled number of messages, separated by sampled inter-message
//     delays.
//  2. Destinations: every source is assigned a single destination using a
//     DestinationSelection strategy.
//  3. Network: each message is delayed by a sampled network delay.
//
// All durations are given in milliseconds. Distributions are written as
// "constant:V", "uniform:MIN:MAX" or "normal:MEAN:DEV". Runs with the same
// seed produce the same trace.
package generator
