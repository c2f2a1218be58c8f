// Package tui implements the full-screen terminal dashboard for WLED boards.
//
// Built on Bubble Tea, it follows the Elm architecture: each screen is a
// model with Update and View, and AppModel routes messages between them.
//
// # Screens
//
//   - Discovery: sweep a /24 range with live progress, or test one address
//   - Boards: the saved boards with power, brightness and sync controls,
//     an add-by-address form and remove confirmation
//
// Both screens use RenderApplicationContainer for the shared header, border
// and context-sensitive help footer.
//
// # State
//
// Board data never lives in the models. The dashboard controller's store
// publishes every change, and AppModel subscribes to it through a one-slot
// channel that always holds the newest snapshot. Commands run as tea.Cmds
// and report back with small result messages; the board list itself updates
// through the store (optimistically, then confirmed or rolled back).
//
// # Usage Example
//
//	err := tui.Run(ctx, ctrl, tui.Options{
//	    Range:         reg.LastNetworkRange(),
//	    RememberRange: func(r string) { reg.SetNetworkRange(r) },
//	})
package tui
