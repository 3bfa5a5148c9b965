package config

import "os"

// lookupEnv is a seam over os.LookupEnv so tests can stub environment
// reads without mutating process-global state.
var lookupEnv = os.LookupEnv
