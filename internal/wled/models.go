package wled

import "encoding/json"

// Info is the /json/info document.
type Info struct {
	Ver      string   `json:"ver"`
	VID      int      `json:"vid,omitempty"`
	Name     string   `json:"name"`
	UDPPort  int      `json:"udpport"`
	Live     bool     `json:"live"`
	LEDs     LEDsInfo `json:"leds"`
	Str      bool     `json:"str"`
	WiFi     WiFiInfo `json:"wifi"`
	FS       FSInfo   `json:"fs"`
	NDC      int      `json:"ndc"`
	Arch     string   `json:"arch"`
	Core     string   `json:"core"`
	LWIP     int      `json:"lwip"`
	FreeHeap int      `json:"freeheap"`
	Uptime   int      `json:"uptime"`
	Opt      int      `json:"opt"`
	Brand    string   `json:"brand"`
	Product  string   `json:"product"`
	MAC      string   `json:"mac"`
	IP       string   `json:"ip"`
}

type LEDsInfo struct {
	Count  int  `json:"count"`
	RGBW   bool `json:"rgbw"`
	WV     int  `json:"wv"`
	FPS    int  `json:"fps"`
	MaxPwr int  `json:"maxpwr"`
	MaxSeg int  `json:"maxseg"`
}

type WiFiInfo struct {
	BSSID   string `json:"bssid"`
	RSSI    int    `json:"rssi"`
	Signal  int    `json:"signal"`
	Channel int    `json:"channel"`
}

type FSInfo struct {
	Used  int `json:"u"`
	Total int `json:"t"`
	PMT   int `json:"pmt"`
}

// State is the /json/state document.
type State struct {
	On         bool       `json:"on"`
	Bri        int        `json:"bri"`
	Transition int        `json:"transition"`
	PS         int        `json:"ps"`
	PL         int        `json:"pl"`
	NL         Nightlight `json:"nl"`
	UDPN       UDPN       `json:"udpn"`
	Seg        []Segment  `json:"seg,omitempty"`
}

type Nightlight struct {
	On   bool `json:"on"`
	Dur  int  `json:"dur"`
	Fade bool `json:"fade"`
	Mode int  `json:"mode"`
	TBri int  `json:"tbri"`
	Rem  int  `json:"rem"`
}

// UDPN holds the UDP sync flags. Firmware reports receive as "recv"; some
// older builds and saved configs use "receive", so both decode.
type UDPN struct {
	Send    bool `json:"send"`
	Receive bool `json:"recv"`
}

func (u *UDPN) UnmarshalJSON(data []byte) error {
	var raw struct {
		Send    bool  `json:"send"`
		Recv    *bool `json:"recv"`
		Receive *bool `json:"receive"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	u.Send = raw.Send
	switch {
	case raw.Recv != nil:
		u.Receive = *raw.Recv
	case raw.Receive != nil:
		u.Receive = *raw.Receive
	default:
		u.Receive = false
	}
	return nil
}

type Segment struct {
	ID    int     `json:"id"`
	Start int     `json:"start"`
	Stop  int     `json:"stop"`
	Len   int     `json:"len"`
	Grp   int     `json:"grp"`
	Spc   int     `json:"spc"`
	Of    int     `json:"of"`
	On    bool    `json:"on"`
	Bri   int     `json:"bri"`
	Col   [][]int `json:"col"`
	FX    int     `json:"fx"`
	SX    int     `json:"sx"`
	IX    int     `json:"ix"`
	Pal   int     `json:"pal"`
	Sel   bool    `json:"sel"`
	Rev   bool    `json:"rev"`
	Mi    bool    `json:"mi"`
}

// StateResponse is the combined /json document.
type StateResponse struct {
	State State `json:"state"`
	Info  Info  `json:"info"`
}

// IsBoard reports whether the response came from a WLED board. Anything
// without a name is treated as some other HTTP server.
func (r *StateResponse) IsBoard() bool {
	return r != nil && r.Info.Name != ""
}

// StatePatch is a partial update POSTed to /json/state. Nil fields are left
// untouched on the board.
type StatePatch struct {
	On   *bool      `json:"on,omitempty"`
	Bri  *int       `json:"bri,omitempty"`
	UDPN *UDPNPatch `json:"udpn,omitempty"`
}

type UDPNPatch struct {
	Send *bool `json:"send,omitempty"`
	Recv *bool `json:"recv,omitempty"`
}

// Apply returns a copy of s with the patch applied.
func (p StatePatch) Apply(s State) State {
	if p.On != nil {
		s.On = *p.On
	}
	if p.Bri != nil {
		s.Bri = *p.Bri
	}
	if p.UDPN != nil {
		if p.UDPN.Send != nil {
			s.UDPN.Send = *p.UDPN.Send
		}
		if p.UDPN.Recv != nil {
			s.UDPN.Receive = *p.UDPN.Recv
		}
	}
	return s
}

// ClampBrightness limits v to the 0..255 range the firmware accepts.
func ClampBrightness(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

func Bool(v bool) *bool { return &v }

func Int(v int) *int { return &v }
