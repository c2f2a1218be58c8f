package wled

// statusJSON is a trimmed /json response captured from a WLED 0.14 board.
const statusJSON = `{
  "state": {"on": true, "bri": 128, "transition": 7, "ps": -1, "pl": -1,
    "nl": {"on": false, "dur": 60, "mode": 1, "tbri": 0, "rem": -1},
    "udpn": {"send": true, "recv": false},
    "seg": [{"id": 0, "start": 0, "stop": 30, "len": 30, "on": true, "bri": 255,
      "col": [[255,160,0],[0,0,0],[0,0,0]], "fx": 0, "sx": 128, "ix": 128, "pal": 0}]},
  "info": {"ver": "0.14.0", "vid": 2310130, "name": "Desk", "udpport": 21324,
    "leds": {"count": 30, "rgbw": false, "wv": 0, "fps": 42, "maxpwr": 850, "maxseg": 32},
    "wifi": {"bssid": "AA:BB:CC:DD:EE:FF", "rssi": -61, "signal": 78, "channel": 6},
    "fs": {"u": 12, "t": 983, "pmt": 0},
    "arch": "esp32", "core": "v3.3.6", "freeheap": 160000, "uptime": 3600,
    "brand": "WLED", "product": "FOSS", "mac": "a1b2c3d4e5f6", "ip": "192.168.1.40"}
}`
