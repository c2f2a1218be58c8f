package urls

// Documentation URLs for guides and troubleshooting
// WLED's own documentation lives at https://kno.wled.ge/

// JSONAPI documents the /json endpoints wledui talks to.
const JSONAPI = "https://kno.wled.ge/interfaces/json-api/"

// UDPSync explains the send/receive sync flags.
const UDPSync = "https://kno.wled.ge/interfaces/udp-notifier/"

// GettingStarted covers flashing a board and joining it to WiFi.
const GettingStarted = "https://kno.wled.ge/basics/getting-started/"

// FAQ answers common connectivity questions.
const FAQ = "https://kno.wled.ge/basics/faq/"
