// Package meter is the switch's OpenFlow 1.3 meter table.
//
// The table is a copy-on-write snapshot published through an
// rcu.Pointer. The datapath (Account, Exceed) and the stats paths read
// it from registered threads without locks; meter-mods are serialized,
// build a new snapshot, publish it and hand the superseded one back to
// a pool once every reader has passed a quiescent point.
package meter
