// Package queue ranks a party's queued tracks and applies votes.
//
// A snapshot is built from the stored tracks with their vote counters and the
// viewer's own markers. [Rank] orders it once; [Service.ChangeVote] and
// [Service.Toggle] mutate markers and counters together and notify subscribers.
package queue
