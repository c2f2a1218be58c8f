// Package wled is a client for the JSON HTTP API of WLED lighting boards.
//
// Only the parts of the API wledui needs are covered: reading /json,
// /json/info and /json/state, and POSTing partial state for power,
// brightness and UDP sync.
//
//	client := wled.NewClient("192.168.1.40", 80)
//	status, err := client.Identify(ctx)
//	if err != nil {
//	    fmt.Println(wled.ShortMessage(err))
//	}
//	err = client.SetBrightness(ctx, 128)
//
// # Errors
//
// Every failure is a *DeviceError classified by ErrorType. ShortMessage gives
// the single line shown in the dashboards and TroubleshootingHint the longer
// CLI advice. Normalize turns any (value, error) pair into a Result.
package wled
