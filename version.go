package hostlink

// Version is the protocol version reported to the host.
const Version = "2.34.0"
