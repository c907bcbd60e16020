// Package snapshot persists the meter table so that restart replays only
// the journal written after the newest snapshot.
//
// A snapshot is taken inside one read-side critical section on a
// dedicated rcu thread, so it reflects exactly one published version of
// the table while meter-mods keep flowing. The file is the SHA-1 digest
// of the gob body followed by the body.
package snapshot
