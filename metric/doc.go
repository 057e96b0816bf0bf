// Package metric implements Progressive Pruning, an estimate of the
// relationship anonymity a stream-based anonymous communication network
// provides to its senders.
//
// # Threat Model
//
// The observer sees every message entering the network (source, time) and
// every message leaving it (destination, time), and knows that the network
// delays each message by at least Window.Min and at most Window.Max. It
// cannot link an outgoing message to an incoming one directly.
//
// # Message Anonymity Sets
//
// For a message sent at t, every message arriving within [t+Min, t+Max] is
// a candidate for being that message. The computation walks a time-ordered
// queue of events (source window opens, destination message arrives, source
// window closes) and records, per source message, its candidates split by
// destination. Rather than keeping full sets, each message stores for every
// destination how many candidates are new compared to the previous message
// of the same source and how many are shared with it (see Delta).
//
// # Pruning
//
// A source talking to destination d must have had one distinct message to
// d for each of its own messages. Walking a source's messages in order, the
// algorithm tracks how many unassigned candidate messages each destination
// still has; a destination is pruned as soon as it cannot account for the
// next message. The destinations that survive after a message form its
// relationship anonymity set. Sets never grow, and a source is deanonymized
// once its set has a single element.
//
// Sources are pruned independently and concurrently.
package metric
