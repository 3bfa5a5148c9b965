package flags

import "os"

func defaultLookupEnv(key string) (string, bool) { return os.LookupEnv(key) }
