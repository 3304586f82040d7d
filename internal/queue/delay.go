// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

package queue

import "time"

// delayBand maps a priority threshold to an enqueue delay. Bands are
// ordered descending by threshold; the first band whose MinPriority the
// job meets wins.
type delayBand struct {
	MinPriority int
	Delay       time.Duration
}

// delayBands throttles low-priority work away from immediate execution,
// smoothing load without a separate scheduler thread. The mapping is a
// data artifact so it can be extended and tested in isolation from
// scheduling logic.
var delayBands = []delayBand{
	{MinPriority: 9, Delay: 0},
	{MinPriority: 7, Delay: time.Minute},
	{MinPriority: 5, Delay: 5 * time.Minute},
	{MinPriority: 3, Delay: 15 * time.Minute},
	{MinPriority: 0, Delay: 30 * time.Minute},
}

// DelayForPriority returns the enqueue delay for a job priority.
func DelayForPriority(priority int) time.Duration {
	for _, band := range delayBands {
		if priority >= band.MinPriority {
			return band.Delay
		}
	}
	// Negative priorities fall through to the slowest band.
	return delayBands[len(delayBands)-1].Delay
}
