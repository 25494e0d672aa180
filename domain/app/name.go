package app

// Name is the application name used in logs, usage text and file paths.
const Name = "meshvpn"
