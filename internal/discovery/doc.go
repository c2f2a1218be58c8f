// Package discovery finds WLED boards on the local network.
//
// The main path is a subnet sweep: every address from base.1 to base.254 is
// asked for /json through a limiter that keeps at most 24 probes in flight,
// each with a 2 second timeout. An address counts as a board when its
// response carries an info.name.
//
//	scanner := discovery.NewScanner()
//	boards, err := scanner.Sweep(ctx, "192.168.1", func(p discovery.Progress) {
//	    fmt.Printf("\r%d/%d checked, %d found", p.Checked, p.Total, p.Found)
//	})
//
// Canceling ctx stops the sweep: probes not yet started are skipped, no more
// progress is reported and Sweep returns ctx.Err().
//
// Browse is a faster alternative on networks where multicast works. It
// listens for "_wled._tcp" mDNS announcements and then confirms each one
// over HTTP the same way a sweep would.
package discovery
