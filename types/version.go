package types

// Version is the canonical gateway version, shared by the CLI entrypoints
// and the HTTP boundary's version reporting.
const Version = "0.1.0"
