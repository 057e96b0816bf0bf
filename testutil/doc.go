/*
Package testutil provides test fixtures for the ppcalc packages.

# Overview

Most tests need small, hand-checkable traces or larger randomized ones with
known properties. This package builds both so that test code can focus on
the behaviour under test.

# Hand-written Traces

Timestamps are given in milliseconds after the Unix epoch:

	tr := testutil.BuildTrace(t,
	    testutil.Msg(0, 0, 0, 1, 10),   // message 0: source 0 at 0ms -> destination 1 at 10ms
	    testutil.Msg(1, 1, 5, 2, 12),
	)

BuildTrace renumbers messages by arrival time (Builder.Fix) and fails the
test on any validation error. Entries that are already ordered by arrival
keep their IDs.

# Randomized Traces

	tr := testutil.GenerateTestTrace(t,
	    testutil.WithSources(20),
	    testutil.WithDestinations(5),
	    testutil.WithMessagesPerSource(30),
	    testutil.WithDelay(10*time.Millisecond, 200*time.Millisecond),
	    testutil.WithSeed(7),
	)

Every source talks to exactly one destination and every network delay lies
within the configured bounds, so an analysis with the same window must keep
each source's true destination in all its anonymity sets.

This package is intended for testing purposes only and should not be used in
production code.
*/
package testutil
