// Package ofp13 holds the OpenFlow 1.3 wire structures the switch
// daemon speaks: the common header, error messages, multipart framing,
// meters, table statistics and features, asynchronous configuration and
// the ONF flow-monitor extension.
//
// Every structure marshals to its exact on-wire size in network byte
// order. Variable-length tails (meter bands, band statistics, table
// feature properties, oxm matches) follow the fixed part as described
// by the structure's length field.
package ofp13
