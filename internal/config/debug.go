package config

import "os"

func IsDebug() bool {
	return os.Getenv("EQCHAT_DEBUG") == "1"
}
