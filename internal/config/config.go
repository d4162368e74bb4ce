// Package config locates commitlogd's TLS material and ACL fixtures on
// disk and builds *tls.Config values from them.
package config

import (
	"os"
	"path/filepath"
)

// Well-known file locations under the config directory, resolved the
// same way at every call site: $CONFIG_DIR if set, else ~/.commitlog.
var (
	CAFile               = configFile("ca.pem")
	ServerCertFile       = configFile("server.pem")
	ServerKeyFile        = configFile("server-key.pem")
	RootClientCertFile   = configFile("root-client.pem")
	RootClientKeyFile    = configFile("root-client-key.pem")
	NobodyClientCertFile = configFile("nobody-client.pem")
	NobodyClientKeyFile  = configFile("nobody-client-key.pem")
	ACLModelFile         = configFile("model.conf")
	ACLPolicyFile        = configFile("policy.csv")
)

func configFile(filename string) string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, filename)
	}

	homeDir, err := os.UserHomeDir()

	if err != nil {
		panic(err)
	}

	return filepath.Join(homeDir, ".commitlog", filename)
}
