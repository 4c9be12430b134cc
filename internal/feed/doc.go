// Package feed delivers detection batches from the perception process to the
// simulation. Lines arrive over a serial link, a pipe or stdin (Mux), as UDP
// datagrams (UDPListener), from a recorded capture (ReplayPCAP) or from the
// built-in Synthetic generator. Every source hands its payloads to a Pump,
// which parses them and offers the batches to the detection hand-off without
// ever blocking.
package feed
